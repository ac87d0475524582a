package bots

import (
	"sort"

	"gymchess/rules"
)

const (
	capturePriority   = 10
	promotionPriority = 5
)

func movePriority(m rules.Move) int {
	p := 0
	if m.IsCapture() {
		p += capturePriority
	}
	if m.Has(rules.Promotion) {
		p += promotionPriority
	}
	return p
}

// OrderMoves returns captures and promotions first. The input slice is not
// modified and moves of equal priority keep their relative order.
func OrderMoves(moves []rules.Move) []rules.Move {
	ordered := make([]rules.Move, len(moves))
	copy(ordered, moves)
	sort.SliceStable(ordered, func(i, j int) bool {
		return movePriority(ordered[i]) > movePriority(ordered[j])
	})
	return ordered
}

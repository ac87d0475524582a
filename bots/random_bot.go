package bots

import (
	"context"

	"gymchess/rules"

	"lukechampine.com/frand"
)

// RandomBot plays a uniformly random legal move.
type RandomBot struct {
	intn func(n int) int
}

func NewRandomBot() *RandomBot {
	return &RandomBot{intn: frand.Intn}
}

func (b *RandomBot) BestMove(_ context.Context, pos *rules.Position) (rules.Move, bool) {
	if pos == nil {
		return rules.Move{}, false
	}
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return rules.Move{}, false
	}
	intn := b.intn
	if intn == nil {
		intn = frand.Intn
	}
	return moves[intn(len(moves))], true
}

func (b *RandomBot) Name() string {
	return "Random Bot"
}

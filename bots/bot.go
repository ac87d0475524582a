// bot.go
package bots

import (
	"context"

	"gymchess/rules"

	"github.com/notnil/chess"
)

// ChessBot picks a move for the side to move. ok is false when the position
// has no move to offer.
type ChessBot interface {
	BestMove(ctx context.Context, pos *rules.Position) (move rules.Move, ok bool)
	Name() string
}

// Game is the slice of the rules engine the searcher walks. Apply and Undo
// must nest strictly; *rules.Position implements it.
type Game interface {
	LegalMoves() []rules.Move
	Apply(m rules.Move) error
	Undo() error
	IsGameOver() bool
	IsCheckmate() bool
	Turn() chess.Color
	Board() *chess.Board
}

// PositionEvaluator scores a search leaf.
type PositionEvaluator interface {
	Evaluate(g Game) Score
}

var _ Game = (*rules.Position)(nil)

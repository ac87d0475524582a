package rules

import "github.com/notnil/chess"

func (p *Position) IsCheckmate() bool {
	return p.current().Status() == chess.Checkmate
}

func (p *Position) IsStalemate() bool {
	return p.current().Status() == chess.Stalemate
}

// IsDraw covers the draws notnil/chess declares itself (stalemate,
// insufficient material, fivefold repetition, seventy-five moves) plus the
// claimable ones: threefold repetition since Parse and the fifty-move rule.
func (p *Position) IsDraw() bool {
	return p.DrawMethod() != chess.NoMethod
}

// DrawMethod names the rule that makes the current state a draw, or
// chess.NoMethod.
func (p *Position) DrawMethod() chess.Method {
	game := p.top().game
	if game.Outcome() == chess.Draw {
		return game.Method()
	}
	for _, m := range game.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			return m
		}
	}
	return chess.NoMethod
}

func (p *Position) IsGameOver() bool {
	return p.IsCheckmate() || p.IsDraw()
}

// Outcome mirrors chess.Outcome for the current state, with claimable draws
// treated as claimed.
func (p *Position) Outcome() chess.Outcome {
	switch {
	case p.IsCheckmate():
		if p.Turn() == chess.White {
			return chess.BlackWon
		}
		return chess.WhiteWon
	case p.IsDraw():
		return chess.Draw
	}
	return chess.NoOutcome
}

// InCheck reports whether the side to move is in check. After a move this is
// the check tag notnil/chess put on it; the parsed position is scanned once.
func (p *Position) InCheck() bool {
	if m, ok := p.LastMove(); ok {
		return m.Has(Check)
	}
	return p.rootCheck
}

func kingAttacked(b *chess.Board, turn chess.Color) bool {
	for sq, piece := range b.SquareMap() {
		if piece.Type() == chess.King && piece.Color() == turn {
			return attacked(b, sq, turn.Other())
		}
	}
	return false
}

var (
	knightJumps = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	straight    = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonal    = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func pieceAt(b *chess.Board, file, rank int) (chess.Piece, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoPiece, false
	}
	return b.Piece(chess.NewSquare(chess.File(file), chess.Rank(rank))), true
}

func attacked(b *chess.Board, sq chess.Square, by chess.Color) bool {
	file, rank := int(sq.File()), int(sq.Rank())

	pawnRank := rank - 1
	if by == chess.Black {
		pawnRank = rank + 1
	}
	for _, df := range []int{-1, 1} {
		if pc, ok := pieceAt(b, file+df, pawnRank); ok && pc.Type() == chess.Pawn && pc.Color() == by {
			return true
		}
	}
	for _, d := range knightJumps {
		if pc, ok := pieceAt(b, file+d[0], rank+d[1]); ok && pc.Type() == chess.Knight && pc.Color() == by {
			return true
		}
	}
	for _, d := range kingSteps {
		if pc, ok := pieceAt(b, file+d[0], rank+d[1]); ok && pc.Type() == chess.King && pc.Color() == by {
			return true
		}
	}
	slide := func(dirs [][2]int, kinds ...chess.PieceType) bool {
		for _, d := range dirs {
			for f, r := file+d[0], rank+d[1]; ; f, r = f+d[0], r+d[1] {
				pc, ok := pieceAt(b, f, r)
				if !ok {
					break
				}
				if pc == chess.NoPiece {
					continue
				}
				if pc.Color() == by {
					for _, k := range kinds {
						if pc.Type() == k {
							return true
						}
					}
				}
				break
			}
		}
		return false
	}
	return slide(straight, chess.Rook, chess.Queen) || slide(diagonal, chess.Bishop, chess.Queen)
}

package rules

import "github.com/notnil/chess"

// Captured lists the pieces taken since Parse, keyed by the color of the
// piece that was lost, in the order they were taken.
func (p *Position) Captured() map[chess.Color][]chess.PieceType {
	out := map[chess.Color][]chess.PieceType{}
	for i := 1; i < len(p.frames); i++ {
		m := p.frames[i].move
		if !m.IsCapture() {
			continue
		}
		before := p.frames[i-1].game.Position()
		victim := before.Turn().Other()
		kind := chess.Pawn
		if !m.Has(EnPassant) {
			kind = before.Board().Piece(m.To).Type()
		}
		out[victim] = append(out[victim], kind)
	}
	return out
}

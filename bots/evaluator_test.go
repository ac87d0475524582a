package bots

import (
	"testing"

	"gymchess/rules"

	"github.com/notnil/chess"
)

var swappedColor = map[chess.Piece]chess.Piece{
	chess.WhiteKing: chess.BlackKing, chess.BlackKing: chess.WhiteKing,
	chess.WhiteQueen: chess.BlackQueen, chess.BlackQueen: chess.WhiteQueen,
	chess.WhiteRook: chess.BlackRook, chess.BlackRook: chess.WhiteRook,
	chess.WhiteBishop: chess.BlackBishop, chess.BlackBishop: chess.WhiteBishop,
	chess.WhiteKnight: chess.BlackKnight, chess.BlackKnight: chess.WhiteKnight,
	chess.WhitePawn: chess.BlackPawn, chess.BlackPawn: chess.WhitePawn,
}

// mirrorBoard swaps every piece's color and flips ranks.
func mirrorBoard(b *chess.Board) *chess.Board {
	m := make(map[chess.Square]chess.Piece)
	for sq, piece := range b.SquareMap() {
		m[chess.NewSquare(sq.File(), chess.Rank(7-int(sq.Rank())))] = swappedColor[piece]
	}
	return chess.NewBoard(m)
}

func mustParse(t *testing.T, fen string) *rules.Position {
	t.Helper()
	p, err := rules.Parse(fen)
	if err != nil {
		t.Fatalf("Parse(%q): %v", fen, err)
	}
	return p
}

func TestEvaluateStartPositionIsZero(t *testing.T) {
	if got := (DefaultEvaluator{}).Evaluate(rules.NewPosition()); got != 0 {
		t.Fatalf("start position evaluates to %d, want 0", got)
	}
}

func TestEvaluateKingsOnly(t *testing.T) {
	p := mustParse(t, "4k3/8/8/8/8/8/8/4K3 w - - 0 1")
	if got := EvaluateBoard(p.Board()); got != 0 {
		t.Fatalf("bare kings on e1/e8 evaluate to %d, want 0", got)
	}
	// White king on g1 gets +30, black king on e8 gets 0.
	p = mustParse(t, "4k3/8/8/8/8/8/8/6K1 w - - 0 1")
	if got := EvaluateBoard(p.Board()); got != 30 {
		t.Fatalf("kings g1/e8 evaluate to %d, want 30", got)
	}
}

func TestEvaluateMaterialAndTables(t *testing.T) {
	// Queen on d1: 900 material, -5 from the table.
	p := mustParse(t, "4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	if got := EvaluateBoard(p.Board()); got != 895 {
		t.Fatalf("extra white queen evaluates to %d, want 895", got)
	}
	// Black pawn on e2 about to promote sits on its own 50 row.
	p = mustParse(t, "4k3/8/8/8/8/8/4p3/K7 w - - 0 1")
	if got := EvaluateBoard(p.Board()); got != -150+20 {
		t.Fatalf("black pawn on e2 evaluates to %d, want %d", got, -150+20)
	}
}

func TestEvaluateColorMirroringNegates(t *testing.T) {
	fens := []string{
		rules.StartFEN,
		"r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4",
		"6k1/5ppp/8/8/3q4/8/2N2PPP/4R1K1 w - - 0 1",
		"8/2k5/3p4/p2P1p2/P2P1P2/8/4K3/8 w - - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	}
	for _, fen := range fens {
		b := mustParse(t, fen).Board()
		got, mirrored := EvaluateBoard(b), EvaluateBoard(mirrorBoard(b))
		if got != -mirrored {
			t.Fatalf("%s: evaluate = %d, mirrored = %d", fen, got, mirrored)
		}
	}
}

func TestEvaluateEmptyBoard(t *testing.T) {
	if got := EvaluateBoard(chess.NewBoard(map[chess.Square]chess.Piece{})); got != 0 {
		t.Fatalf("empty board evaluates to %d", got)
	}
}

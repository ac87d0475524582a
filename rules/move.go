package rules

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Flag marks properties of a move that the search heuristics care about.
type Flag uint8

const (
	Capture Flag = 1 << iota
	EnPassant
	Promotion
	Castle
	// Check marks a move that leaves the opponent in check.
	Check
)

// Move is an immutable move value. Flags are filled in by the position that
// generated the move; a Move parsed from UCI text carries none.
type Move struct {
	From      chess.Square
	To        chess.Square
	Promotion chess.PieceType
	Flags     Flag
}

func (m Move) Has(f Flag) bool {
	return m.Flags&f != 0
}

// IsCapture reports whether the move removes an enemy piece, en passant included.
func (m Move) IsCapture() bool {
	return m.Flags&(Capture|EnPassant) != 0
}

// Same compares the from/to/promotion triple and ignores flags.
func (m Move) Same(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

// String returns the move in UCI notation, e.g. "e2e4" or "e7e8q".
func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != chess.NoPieceType {
		s += promoLetters[m.Promotion]
	}
	return s
}

func (m Move) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := ParseMove(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

var promoLetters = map[chess.PieceType]string{
	chess.Queen:  "q",
	chess.Rook:   "r",
	chess.Bishop: "b",
	chess.Knight: "n",
}

// ParseMove parses UCI move text. Legality is checked only by Position.Apply.
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("parse move %q: want 4 or 5 characters", s)
	}
	from, err := parseSquare(s[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("parse move %q: %w", s, err)
	}
	to, err := parseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("parse move %q: %w", s, err)
	}
	m := Move{From: from, To: to, Promotion: chess.NoPieceType}
	if len(s) == 5 {
		for pt, letter := range promoLetters {
			if letter == s[4:] {
				m.Promotion = pt
			}
		}
		if m.Promotion == chess.NoPieceType {
			return Move{}, fmt.Errorf("parse move %q: bad promotion piece", s)
		}
	}
	return m, nil
}

func parseSquare(s string) (chess.Square, error) {
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return chess.NoSquare, fmt.Errorf("bad square %q", s)
	}
	return chess.NewSquare(chess.File(file-'a'), chess.Rank(rank-'1')), nil
}

func fromChess(cm *chess.Move) Move {
	m := Move{From: cm.S1(), To: cm.S2(), Promotion: cm.Promo()}
	if cm.HasTag(chess.Capture) {
		m.Flags |= Capture
	}
	if cm.HasTag(chess.EnPassant) {
		m.Flags |= Capture | EnPassant
	}
	if cm.Promo() != chess.NoPieceType {
		m.Flags |= Promotion
	}
	if cm.HasTag(chess.KingSideCastle) || cm.HasTag(chess.QueenSideCastle) {
		m.Flags |= Castle
	}
	if cm.HasTag(chess.Check) {
		m.Flags |= Check
	}
	return m
}

// Package rules adapts github.com/notnil/chess into the position handle the
// search engine works on: legal move generation, scoped apply/undo, FEN
// interchange and game termination.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrIllegalMove     = errors.New("illegal move")
	ErrNothingToUndo   = errors.New("nothing to undo")
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// frame is the game after one more move. notnil/chess keeps the position
// history inside the game, which is what repetition and draw claims use.
type frame struct {
	game *chess.Game
	move Move
}

// Position is a game state plus the stack of states reached through Apply.
// It is not safe for concurrent use; searches work on a Clone.
type Position struct {
	root      string
	rootCheck bool
	frames    []frame
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	p, err := Parse(StartFEN)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse builds a position from FEN. Anything notnil/chess cannot decode, or a
// board without exactly one king per side, is ErrInvalidPosition.
func Parse(fen string) (*Position, error) {
	game, err := decodeFEN(fen)
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	return &Position{
		root:      fen,
		rootCheck: kingAttacked(pos.Board(), pos.Turn()),
		frames:    []frame{{game: game}},
	}, nil
}

func decodeFEN(fen string) (*chess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty FEN", ErrInvalidPosition)
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	game := chess.NewGame(opt)
	var white, black int
	for _, piece := range game.Position().Board().SquareMap() {
		switch piece {
		case chess.WhiteKing:
			white++
		case chess.BlackKing:
			black++
		}
	}
	if white != 1 || black != 1 {
		return nil, fmt.Errorf("%w: want one king per side, got %d white and %d black", ErrInvalidPosition, white, black)
	}
	return game, nil
}

func (p *Position) top() frame {
	return p.frames[len(p.frames)-1]
}

func (p *Position) current() *chess.Position {
	return p.top().game.Position()
}

// String serializes the current state as FEN.
func (p *Position) String() string {
	return p.current().String()
}

func (p *Position) Turn() chess.Color {
	return p.current().Turn()
}

func (p *Position) Board() *chess.Board {
	return p.current().Board()
}

// Ply is the number of moves applied since the position was parsed.
func (p *Position) Ply() int {
	return len(p.frames) - 1
}

// LastMove is the move that produced the current state.
func (p *Position) LastMove() (Move, bool) {
	if p.Ply() == 0 {
		return Move{}, false
	}
	return p.top().move, true
}

func (p *Position) LegalMoves() []Move {
	valid := p.top().game.ValidMoves()
	moves := make([]Move, 0, len(valid))
	for _, cm := range valid {
		moves = append(moves, fromChess(cm))
	}
	return moves
}

// LegalMovesFrom returns the legal moves starting on sq.
func (p *Position) LegalMovesFrom(sq chess.Square) []Move {
	var moves []Move
	for _, cm := range p.top().game.ValidMoves() {
		if cm.S1() == sq {
			moves = append(moves, fromChess(cm))
		}
	}
	return moves
}

func (p *Position) find(m Move) (*chess.Move, bool) {
	for _, cm := range p.top().game.ValidMoves() {
		if cm.S1() == m.From && cm.S2() == m.To && cm.Promo() == m.Promotion {
			return cm, true
		}
	}
	return nil, false
}

// Apply plays m. A move that is not legal here leaves the position untouched
// and returns ErrIllegalMove.
func (p *Position) Apply(m Move) error {
	cm, ok := p.find(m)
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, p.String())
	}
	next := p.top().game.Clone()
	if err := next.Move(cm); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	p.frames = append(p.frames, frame{game: next, move: fromChess(cm)})
	return nil
}

// Undo reverts the most recent Apply.
func (p *Position) Undo() error {
	if len(p.frames) <= 1 {
		return ErrNothingToUndo
	}
	p.frames = p.frames[:len(p.frames)-1]
	return nil
}

// Clone returns an independent copy, history included. The copy replays the
// moves from the parsed FEN so it shares no notnil/chess state with p.
func (p *Position) Clone() *Position {
	c, err := Parse(p.root)
	if err != nil {
		// p.root was accepted by Parse once already.
		panic(fmt.Sprintf("rules: re-parsing own position: %v", err))
	}
	for _, f := range p.frames[1:] {
		if err := c.Apply(f.move); err != nil {
			panic(fmt.Sprintf("rules: replaying %s: %v", f.move, err))
		}
	}
	return c
}

// SAN renders m in standard algebraic notation for the current position.
func (p *Position) SAN(m Move) (string, error) {
	cm, ok := p.find(m)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	return chess.AlgebraicNotation{}.Encode(p.current(), cm), nil
}

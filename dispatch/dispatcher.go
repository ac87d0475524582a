// Package dispatch runs move searches off the caller's goroutine and makes sure
// only the newest request for a game ever has its result delivered.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gymchess/bots"
	"gymchess/rules"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("dispatcher closed")

const DefaultDelay = 300 * time.Millisecond

// Request asks for a move in the position described by FEN. Requests with the
// same GameID supersede each other.
type Request struct {
	GameID     string `json:"game_id"`
	FEN        string `json:"fen"`
	Difficulty string `json:"difficulty"`
}

// Result answers one request. Move is nil when the position has no move to
// offer; Err is set only when the search itself failed.
type Result struct {
	GameID string      `json:"game_id"`
	Seq    uint64      `json:"seq"`
	FEN    string      `json:"fen"`
	Move   *rules.Move `json:"move"`
	Err    error       `json:"-"`
}

// Engine resolves difficulties and picks moves. *bots.Policy implements it.
type Engine interface {
	Resolve(id string) (bots.Tier, error)
	ChooseTier(ctx context.Context, pos *rules.Position, t bots.Tier) (rules.Move, bool)
}

type Option func(*Dispatcher)

// WithDelay sets the pause before a search starts. Rapid resubmissions within
// the delay cost nothing.
func WithDelay(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.delay = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(disp *Dispatcher) { disp.log = l }
}

type task struct {
	seq    uint64
	cancel context.CancelFunc
}

// Dispatcher runs one goroutine per accepted request.
type Dispatcher struct {
	engine Engine
	delay  time.Duration
	log    zerolog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]*task
	closed  bool
	group   errgroup.Group
}

func New(engine Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:  engine,
		delay:   DefaultDelay,
		log:     zerolog.Nop(),
		pending: make(map[string]*task),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit validates req and schedules a search for it. Malformed FEN and
// unknown difficulties are returned immediately and nothing is scheduled.
// Any earlier request for the same game is cancelled and its result dropped.
//
// deliver is called at most once, from the search goroutine, with the
// dispatcher lock held: it must not block or call back into the Dispatcher.
// ctx bounds the search; cancelling it abandons the request.
func (d *Dispatcher) Submit(ctx context.Context, req Request, deliver func(Result)) (uint64, error) {
	pos, err := rules.Parse(req.FEN)
	if err != nil {
		return 0, err
	}
	tier, err := d.engine.Resolve(req.Difficulty)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if prev, ok := d.pending[req.GameID]; ok {
		prev.cancel()
		d.log.Debug().Str("game", req.GameID).Uint64("seq", prev.seq).Msg("superseded")
	}
	d.seq++
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{seq: d.seq, cancel: cancel}
	d.pending[req.GameID] = t

	d.group.Go(func() error {
		d.run(taskCtx, t, req, tier, pos, deliver)
		return nil
	})
	return t.seq, nil
}

func (d *Dispatcher) run(ctx context.Context, t *task, req Request, tier bots.Tier, pos *rules.Position, deliver func(Result)) {
	defer t.cancel()
	res := Result{GameID: req.GameID, Seq: t.seq, FEN: req.FEN}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("game", req.GameID).Msg("search panicked")
			res.Move = nil
			res.Err = fmt.Errorf("search panicked: %v", r)
			d.deliver(t, res, deliver)
		}
	}()

	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.drop(req.GameID, t)
			return
		case <-timer.C:
		}
	}

	start := time.Now()
	move, ok := d.engine.ChooseTier(ctx, pos, tier)
	if ctx.Err() != nil {
		d.log.Debug().Str("game", req.GameID).Uint64("seq", t.seq).Msg("search abandoned")
		d.drop(req.GameID, t)
		return
	}
	if ok {
		res.Move = &move
	}
	d.log.Info().
		Str("game", req.GameID).
		Uint64("seq", t.seq).
		Str("difficulty", tier.ID).
		Stringer("move", moveOrNone(res.Move)).
		Dur("took", time.Since(start)).
		Msg("search finished")
	d.deliver(t, res, deliver)
}

// deliver hands res to fn only if t is still the game's current request.
func (d *Dispatcher) deliver(t *task, res Result, fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.pending[res.GameID]; !ok || cur != t {
		d.log.Debug().Str("game", res.GameID).Uint64("seq", t.seq).Msg("discarding stale result")
		return
	}
	delete(d.pending, res.GameID)
	if fn != nil {
		fn(res)
	}
}

func (d *Dispatcher) drop(gameID string, t *task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.pending[gameID]; ok && cur == t {
		delete(d.pending, gameID)
	}
}

// Cancel abandons the pending request for gameID, if any. Once Cancel returns
// no result for that request will be delivered.
func (d *Dispatcher) Cancel(gameID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[gameID]; ok {
		t.cancel()
		delete(d.pending, gameID)
	}
}

// Pending reports whether gameID has a request whose result is still due.
func (d *Dispatcher) Pending(gameID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[gameID]
	return ok
}

// Close cancels every pending request and waits for their goroutines.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for id, t := range d.pending {
		t.cancel()
		delete(d.pending, id)
	}
	d.mu.Unlock()
	return d.group.Wait()
}

type moveString struct{ m *rules.Move }

func (s moveString) String() string {
	if s.m == nil {
		return "none"
	}
	return s.m.String()
}

func moveOrNone(m *rules.Move) fmt.Stringer {
	return moveString{m}
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gymchess/bots"
	"gymchess/rules"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"

// gatedEngine blocks every search until release is closed and ignores
// cancellation, so a superseded search still runs to completion.
type gatedEngine struct {
	*bots.Policy
	started chan string
	release chan struct{}
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{Policy: bots.NewPolicy(), started: make(chan string, 8), release: make(chan struct{})}
}

func (e *gatedEngine) ChooseTier(_ context.Context, pos *rules.Position, t bots.Tier) (rules.Move, bool) {
	e.started <- pos.String()
	<-e.release
	return e.Policy.ChooseTier(context.Background(), pos, t)
}

type countingEngine struct {
	*bots.Policy
	calls atomic.Int32
}

func (e *countingEngine) ChooseTier(ctx context.Context, pos *rules.Position, t bots.Tier) (rules.Move, bool) {
	e.calls.Add(1)
	return e.Policy.ChooseTier(ctx, pos, t)
}

type panickingEngine struct{ *bots.Policy }

func (panickingEngine) ChooseTier(context.Context, *rules.Position, bots.Tier) (rules.Move, bool) {
	panic("boom")
}

func collector() (chan Result, func(Result)) {
	ch := make(chan Result, 8)
	return ch, func(r Result) { ch <- r }
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for a result")
	}
	return Result{}
}

func TestSubmitDeliversMove(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(0))
	defer d.Close()

	results, deliver := collector()
	seq, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "medium"}, deliver)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res := waitResult(t, results)
	if res.Seq != seq || res.GameID != "g" || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Move == nil {
		t.Fatalf("expected a move from the start position")
	}
	legal := false
	for _, m := range rules.NewPosition().LegalMoves() {
		if m.Same(*res.Move) {
			legal = true
		}
	}
	if !legal {
		t.Fatalf("delivered illegal move %s", res.Move)
	}
	if d.Pending("g") {
		t.Fatalf("request still pending after delivery")
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(0))
	defer d.Close()

	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: "garbage", Difficulty: "easy"}, nil); !errors.Is(err, rules.ErrInvalidPosition) {
		t.Fatalf("bad FEN: got %v, want ErrInvalidPosition", err)
	}
	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "legendary"}, nil); !errors.Is(err, bots.ErrUnknownDifficulty) {
		t.Fatalf("bad difficulty: got %v, want ErrUnknownDifficulty", err)
	}
	if d.Pending("g") {
		t.Fatalf("rejected request was scheduled")
	}
}

func TestTerminalPositionDeliversNoMove(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(0))
	defer d.Close()

	results, deliver := collector()
	mated := "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: mated, Difficulty: "hard"}, deliver); err != nil {
		t.Fatal(err)
	}
	if res := waitResult(t, results); res.Move != nil || res.Err != nil {
		t.Fatalf("expected no move, got %+v", res)
	}
}

func TestSupersededResultIsNeverDelivered(t *testing.T) {
	engine := newGatedEngine()
	d := New(engine, WithDelay(0))

	results, deliver := collector()
	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "easy"}, deliver); err != nil {
		t.Fatal(err)
	}
	<-engine.started
	seqB, err := d.Submit(context.Background(), Request{GameID: "g", FEN: afterE4, Difficulty: "easy"}, deliver)
	if err != nil {
		t.Fatal(err)
	}
	<-engine.started
	close(engine.release)

	res := waitResult(t, results)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if res.Seq != seqB || res.FEN != afterE4 {
		t.Fatalf("delivered %+v, want seq %d for the newer request", res, seqB)
	}
	select {
	case extra := <-results:
		t.Fatalf("stale result delivered: %+v", extra)
	default:
	}
}

func TestDelayCoalescesRapidRequests(t *testing.T) {
	engine := &countingEngine{Policy: bots.NewPolicy()}
	d := New(engine, WithDelay(100*time.Millisecond))

	results, deliver := collector()
	var last uint64
	for i := 0; i < 5; i++ {
		seq, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "easy"}, deliver)
		if err != nil {
			t.Fatal(err)
		}
		last = seq
	}
	res := waitResult(t, results)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if res.Seq != last {
		t.Fatalf("delivered seq %d, want %d", res.Seq, last)
	}
	if n := engine.calls.Load(); n != 1 {
		t.Fatalf("engine searched %d times, want 1", n)
	}
	if len(results) != 0 {
		t.Fatalf("%d extra results delivered", len(results))
	}
}

func TestCancelAbandonsRequest(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(time.Hour))

	results, deliver := collector()
	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "easy"}, deliver); err != nil {
		t.Fatal(err)
	}
	if !d.Pending("g") {
		t.Fatalf("expected request to be pending")
	}
	d.Cancel("g")
	if d.Pending("g") {
		t.Fatalf("request still pending after Cancel")
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("cancelled request delivered %+v", <-results)
	}
}

func TestCallerContextAbandonsRequest(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(time.Hour))

	results, deliver := collector()
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := d.Submit(ctx, Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "easy"}, deliver); err != nil {
		t.Fatal(err)
	}
	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for d.Pending("g") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Pending("g") {
		t.Fatalf("request still pending after caller cancelled")
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("abandoned request delivered %+v", <-results)
	}
}

func TestIndependentGamesBothDelivered(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(0))
	defer d.Close()

	results, deliver := collector()
	for _, id := range []string{"a", "b"} {
		if _, err := d.Submit(context.Background(), Request{GameID: id, FEN: rules.StartFEN, Difficulty: "easy"}, deliver); err != nil {
			t.Fatal(err)
		}
	}
	got := map[string]bool{}
	got[waitResult(t, results).GameID] = true
	got[waitResult(t, results).GameID] = true
	if !got["a"] || !got["b"] {
		t.Fatalf("expected results for both games, got %v", got)
	}
}

func TestPanickingSearchReportsError(t *testing.T) {
	d := New(panickingEngine{bots.NewPolicy()}, WithDelay(0))
	defer d.Close()

	results, deliver := collector()
	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "easy"}, deliver); err != nil {
		t.Fatal(err)
	}
	res := waitResult(t, results)
	if res.Err == nil || res.Move != nil {
		t.Fatalf("expected an error result, got %+v", res)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	d := New(bots.NewPolicy(), WithDelay(0))
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Submit(context.Background(), Request{GameID: "g", FEN: rules.StartFEN, Difficulty: "easy"}, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close = %v, want ErrClosed", err)
	}
}

func TestResultJSON(t *testing.T) {
	m, err := rules.ParseMove("e7e8q")
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(Result{GameID: "g", Seq: 3, Move: &m})
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Move *string `json:"move"`
		Seq  uint64  `json:"seq"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Move == nil || *decoded.Move != "e7e8q" || decoded.Seq != 3 {
		t.Fatalf("unexpected JSON %s", data)
	}

	data, _ = json.Marshal(Result{GameID: "g"})
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Move != nil {
		t.Fatalf("absent move should encode as null, got %s", data)
	}
}

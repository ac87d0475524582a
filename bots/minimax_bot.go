package bots

import (
	"context"
	"fmt"

	"gymchess/rules"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"
)

const (
	// Infinity bounds the alpha-beta window; no evaluation comes near it.
	Infinity Score = 1 << 30
	// MateScore is returned for a checkmated side, less the ply it took to get there.
	MateScore Score = 1 << 20
)

type MinimaxBot struct {
	Depth     int
	Evaluator PositionEvaluator
}

func NewMinimaxBot(depth int) *MinimaxBot {
	return &MinimaxBot{
		Depth:     depth,
		Evaluator: DefaultEvaluator{},
	}
}

func (b *MinimaxBot) Name() string {
	return fmt.Sprintf("Minimax Bot (depth %d)", b.Depth)
}

// BestMove searches a private clone of pos; pos itself is never touched.
func (b *MinimaxBot) BestMove(ctx context.Context, pos *rules.Position) (rules.Move, bool) {
	if pos == nil {
		return rules.Move{}, false
	}
	res := b.Search(ctx, pos.Clone())
	return res.Move, res.Found
}

// SearchStats counts the work done by one Search call.
type SearchStats struct {
	Nodes         int
	Leaves        int
	Cutoffs       int
	FailedApplies int
}

type SearchResult struct {
	Move  rules.Move
	Score Score
	Found bool
	Stats SearchStats
}

// Search runs alpha-beta minimax on g in place. Every Apply is paired with an
// Undo, so g is back in its starting state when Search returns. A cancelled
// context yields a result with Found == false.
func (b *MinimaxBot) Search(ctx context.Context, g Game) SearchResult {
	s := &searcher{ctx: ctx, eval: b.evaluator()}
	depth := b.Depth
	if depth < 1 {
		depth = 1
	}

	moves := OrderMoves(g.LegalMoves())
	if len(moves) == 0 {
		return SearchResult{}
	}

	maximizing := g.Turn() == chess.White
	var best SearchResult
	for _, m := range moves {
		if !s.apply(g, m) {
			continue
		}
		score := s.minimax(g, depth-1, 1, -Infinity, Infinity, !maximizing)
		s.undo(g)
		if s.aborted {
			log.Debug().Str("move", m.String()).Msg("search-cancelled")
			return SearchResult{Stats: s.stats}
		}
		if !best.Found || (maximizing && score > best.Score) || (!maximizing && score < best.Score) {
			best = SearchResult{Move: m, Score: score, Found: true}
		}
	}
	best.Stats = s.stats

	if !best.Found {
		log.Warn().Int("moves", len(moves)).Msg("every root move failed to apply")
		return best
	}
	log.Debug().
		Str("best", best.Move.String()).
		Int("score", int(best.Score)).
		Int("depth", depth).
		Int("nodes", s.stats.Nodes).
		Int("cutoffs", s.stats.Cutoffs).
		Msg("search-done")
	return best
}

// Minimax scores g to the given depth without choosing a move.
func (b *MinimaxBot) Minimax(ctx context.Context, g Game, depth int, alpha, beta Score, maximizing bool) Score {
	s := &searcher{ctx: ctx, eval: b.evaluator()}
	return s.minimax(g, depth, 0, alpha, beta, maximizing)
}

func (b *MinimaxBot) evaluator() PositionEvaluator {
	if b.Evaluator == nil {
		return DefaultEvaluator{}
	}
	return b.Evaluator
}

type searcher struct {
	ctx     context.Context
	eval    PositionEvaluator
	stats   SearchStats
	aborted bool
}

func (s *searcher) minimax(g Game, depth, ply int, alpha, beta Score, maximizing bool) Score {
	s.stats.Nodes++
	if s.aborted || s.ctx.Err() != nil {
		s.aborted = true
		return 0
	}
	if depth == 0 || g.IsGameOver() {
		return s.leaf(g, ply)
	}

	best := Infinity
	if maximizing {
		best = -Infinity
	}
	searched := false
	for _, m := range OrderMoves(g.LegalMoves()) {
		if !s.apply(g, m) {
			continue
		}
		value := s.minimax(g, depth-1, ply+1, alpha, beta, !maximizing)
		s.undo(g)
		searched = true

		if maximizing {
			best = max(best, value)
			alpha = max(alpha, value)
		} else {
			best = min(best, value)
			beta = min(beta, value)
		}
		if beta <= alpha {
			s.stats.Cutoffs++
			break
		}
	}
	if !searched {
		return s.leaf(g, ply)
	}
	return best
}

func (s *searcher) leaf(g Game, ply int) Score {
	s.stats.Leaves++
	if g.IsCheckmate() {
		// Side to move is mated; nearer mates score further from zero.
		if g.Turn() == chess.White {
			return -MateScore + Score(ply)
		}
		return MateScore - Score(ply)
	}
	return s.eval.Evaluate(g)
}

func (s *searcher) apply(g Game, m rules.Move) bool {
	if err := g.Apply(m); err != nil {
		s.stats.FailedApplies++
		log.Warn().Err(err).Str("move", m.String()).Msg("skipping branch")
		return false
	}
	return true
}

func (s *searcher) undo(g Game) {
	if err := g.Undo(); err != nil {
		panic(fmt.Sprintf("bots: undo after successful apply: %v", err))
	}
}

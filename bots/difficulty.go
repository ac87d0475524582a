package bots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gymchess/rules"
)

type Strategy string

const (
	StrategyRandom Strategy = "random"
	StrategySearch Strategy = "search"
)

// MaxDepth caps search depth to keep replies interactive.
const MaxDepth = 3

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Tier binds a difficulty id to a move selection strategy.
type Tier struct {
	ID       string   `json:"id"`
	Strategy Strategy `json:"strategy"`
	Depth    int      `json:"depth"`
	Elo      int      `json:"elo"`
	Trainer  string   `json:"trainer"`
}

func DefaultTiers() []Tier {
	return []Tier{
		{ID: "easy", Strategy: StrategyRandom, Depth: 0, Elo: 400, Trainer: "Youngster"},
		{ID: "medium", Strategy: StrategySearch, Depth: 2, Elo: 800, Trainer: "Ace Trainer"},
		{ID: "hard", Strategy: StrategySearch, Depth: 3, Elo: 1200, Trainer: "Gym Leader"},
		{ID: "gm", Strategy: StrategySearch, Depth: 3, Elo: 2500, Trainer: "Champion"},
	}
}

var aliases = map[string]string{
	"expert": "gm",
}

// Policy is the difficulty table. It is read-only once built and safe for
// concurrent use.
type Policy struct {
	tiers  []Tier
	byID   map[string]Tier
	random *RandomBot
}

// NewPolicy builds a policy from tiers, or from DefaultTiers when none are
// given. Search depths are clamped to [1, MaxDepth].
func NewPolicy(tiers ...Tier) *Policy {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	p := &Policy{byID: make(map[string]Tier, len(tiers)), random: NewRandomBot()}
	for _, t := range tiers {
		t.ID = strings.ToLower(t.ID)
		if t.Strategy == StrategySearch {
			t.Depth = min(max(t.Depth, 1), MaxDepth)
		} else {
			t.Strategy = StrategyRandom
			t.Depth = 0
		}
		p.tiers = append(p.tiers, t)
		p.byID[t.ID] = t
	}
	return p
}

func (p *Policy) Resolve(id string) (Tier, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if alias, ok := aliases[id]; ok {
		if _, exists := p.byID[id]; !exists {
			id = alias
		}
	}
	t, ok := p.byID[id]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, id)
	}
	return t, nil
}

// Tiers lists the configured tiers in menu order.
func (p *Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// Bot returns the bot that plays tier t.
func (p *Policy) Bot(t Tier) ChessBot {
	if t.Strategy == StrategySearch {
		return NewMinimaxBot(t.Depth)
	}
	return p.random
}

// ChooseTier picks a move for pos using tier t.
func (p *Policy) ChooseTier(ctx context.Context, pos *rules.Position, t Tier) (rules.Move, bool) {
	return p.Bot(t).BestMove(ctx, pos)
}

// Choose resolves id and picks a move for pos.
func (p *Policy) Choose(ctx context.Context, pos *rules.Position, id string) (rules.Move, bool, error) {
	t, err := p.Resolve(id)
	if err != nil {
		return rules.Move{}, false, err
	}
	m, ok := p.ChooseTier(ctx, pos, t)
	return m, ok, nil
}

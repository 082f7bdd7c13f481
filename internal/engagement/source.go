package engagement

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

// TargetSource supplies engagement candidates for an account.
type TargetSource interface {
	Candidates(ctx context.Context, persona *models.Persona, adapter platform.Adapter, limit int) ([]platform.Target, error)
}

// HashtagSource searches the persona's hashtags, falling back to its niches.
type HashtagSource struct{}

func (HashtagSource) Candidates(ctx context.Context, persona *models.Persona, adapter platform.Adapter, limit int) ([]platform.Target, error) {
	d, ok := platform.AsDiscoverer(adapter)
	if !ok {
		return nil, nil
	}
	tags := []string(persona.Hashtags)
	if len(tags) == 0 {
		tags = persona.Niches
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return d.Discover(ctx, tags, limit)
}

// Planner turns candidates into a filtered action list.
type Planner struct {
	source      TargetSource
	strategy    Strategy
	engagements repository.EngagementRepository
	searchLimit int
	maxFailures int
	logger      *slog.Logger
}

// NewPlanner builds a planner. A target is given up on for a kind once it
// failed maxFailures times, or once with a permanent error.
func NewPlanner(source TargetSource, strategy Strategy, engagements repository.EngagementRepository, searchLimit, maxFailures int, log *slog.Logger) *Planner {
	if searchLimit <= 0 {
		searchLimit = 25
	}
	return &Planner{
		source:      source,
		strategy:    strategy,
		engagements: engagements,
		searchLimit: searchLimit,
		maxFailures: maxFailures,
		logger:      logger.OrDiscard(log).With("component", "engagement_planner"),
	}
}

// Plan returns the actions to run on the account this tick. Kinds the
// adapter does not offer are dropped, and so are targets already settled for
// the kind.
func (p *Planner) Plan(ctx context.Context, persona *models.Persona, account *models.PlatformAccount, adapter platform.Adapter, remaining map[models.ActionKind]int, budget int) ([]Action, error) {
	open := make(map[models.ActionKind]int, len(remaining))
	for kind, n := range remaining {
		if n > 0 && platform.Supports(adapter, kind) {
			open[kind] = n
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	candidates, err := p.source.Candidates(ctx, persona, adapter, p.searchLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	done := func(kind models.ActionKind, t platform.Target) bool {
		settled, err := p.engagements.Settled(ctx, account.ID, kind, TargetKey(kind, t), p.maxFailures)
		if err != nil {
			p.logger.WarnContext(ctx, "engagement lookup failed", "account_id", account.ID, "target_id", t.ID, "error", err)
			return true
		}
		return settled
	}

	return p.strategy.SelectActions(Request{
		Persona:    persona,
		Account:    account,
		Candidates: candidates,
		Remaining:  open,
		Budget:     budget,
		Done:       done,
	}), nil
}

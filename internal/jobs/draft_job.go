package job

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lib/pq"

	"github.com/maheshrc27/persona-scheduler/internal/generator"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

// DraftJob tops up each active persona's content backlog with generated
// drafts. Drafts still go through review before they are scheduled.
type DraftJob struct {
	ctx        context.Context
	repos      *repository.Repositories
	generator  generator.ContentGenerator
	minBacklog int
	logger     *slog.Logger
}

func NewDraftJob(ctx context.Context, repos *repository.Repositories, gen generator.ContentGenerator, minBacklog int, log *slog.Logger) *DraftJob {
	return &DraftJob{
		ctx:        ctx,
		repos:      repos,
		generator:  gen,
		minBacklog: minBacklog,
		logger:     logger.OrDiscard(log).With("job", "drafts"),
	}
}

func (j *DraftJob) Run() {
	if _, err := j.Fill(j.ctx); err != nil {
		j.logger.Error("draft fill failed", "error", err)
	}
}

// Fill returns the number of drafts created.
func (j *DraftJob) Fill(ctx context.Context) (int, error) {
	if j.minBacklog <= 0 {
		return 0, nil
	}
	personas, err := j.repos.Personas.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active personas: %w", err)
	}

	created := 0
	for _, p := range personas {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		n, err := j.fillPersona(ctx, p)
		created += n
		if err != nil {
			j.logger.WarnContext(ctx, "stopped generating drafts", "persona_id", p.ID, "error", err)
		}
	}
	return created, nil
}

func (j *DraftJob) fillPersona(ctx context.Context, p *models.Persona) (int, error) {
	backlog, err := j.repos.Contents.CountBacklog(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	if backlog >= j.minBacklog {
		return 0, nil
	}

	targets, err := j.targets(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	created := 0
	for i := backlog; i < j.minBacklog; i++ {
		draft, err := j.generator.Generate(ctx, p, topicFor(p, i))
		if err != nil {
			return created, err
		}
		c := &models.Content{
			PersonaID:       p.ID,
			Type:            models.ContentTypePost,
			Status:          models.ContentStatusDraft,
			Caption:         draft.Caption,
			Topic:           draft.Topic,
			MediaURLs:       draft.MediaURLs,
			VideoURLs:       draft.VideoURLs,
			TargetPlatforms: targets,
		}
		if len(draft.MediaURLs) > 1 {
			c.Type = models.ContentTypeCarousel
		}
		if _, err := j.repos.Contents.Create(ctx, c); err != nil {
			return created, err
		}
		created++
	}
	j.logger.InfoContext(ctx, "drafts generated", "persona_id", p.ID, "count", created)
	return created, nil
}

// targets lists the platforms of the persona's usable accounts.
func (j *DraftJob) targets(ctx context.Context, personaID int64) (pq.StringArray, error) {
	accounts, err := j.repos.Accounts.ListByPersona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	var out pq.StringArray
	for _, acc := range accounts {
		if acc.Usable() {
			out = append(out, string(acc.Platform))
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func topicFor(p *models.Persona, i int) string {
	switch {
	case len(p.Topics) > 0:
		return p.Topics[i%len(p.Topics)]
	case len(p.Niches) > 0:
		return p.Niches[i%len(p.Niches)]
	default:
		return ""
	}
}

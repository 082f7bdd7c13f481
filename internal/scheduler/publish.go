package scheduler

import (
	"context"
	"errors"

	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

func (s *Scheduler) publishDue(ctx context.Context, u *unit) {
	items, err := s.repos.Contents.ListDue(ctx, u.persona.ID, s.clock.Now())
	if err != nil {
		u.log.ErrorContext(ctx, "failed to list due content", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		s.publishItem(ctx, u, item)
	}
}

// publishers maps each platform to the persona's account that may publish on it.
func (u *unit) publishers() map[models.Platform]*models.PlatformAccount {
	out := make(map[models.Platform]*models.PlatformAccount)
	for _, acc := range u.accounts {
		if acc.PostingPaused || !u.active(acc) {
			continue
		}
		if _, taken := out[acc.Platform]; !taken {
			out[acc.Platform] = acc
		}
	}
	return out
}

func (s *Scheduler) publishItem(ctx context.Context, u *unit, item *models.Content) {
	log := u.log.With("content_id", item.ID)

	publishers := u.publishers()
	var eligible []models.Platform
	for _, p := range item.TargetPlatforms {
		if _, ok := publishers[models.Platform(p)]; ok {
			eligible = append(eligible, models.Platform(p))
		}
	}
	if len(eligible) == 0 {
		log.DebugContext(ctx, "no account can publish this content now")
		return
	}

	attempt, err := s.content.Begin(ctx, item)
	if err != nil {
		if errors.Is(err, content.ErrBusy) || errors.Is(err, content.ErrNotDue) {
			log.DebugContext(ctx, "content skipped", "reason", err)
			return
		}
		log.ErrorContext(ctx, "failed to claim content", "error", err)
		return
	}
	defer attempt.Abort(context.WithoutCancel(ctx))

	for _, p := range attempt.Pending() {
		if ctx.Err() != nil {
			return
		}
		acc, ok := publishers[p]
		if !ok || !u.active(acc) {
			continue
		}
		if err := s.publishTo(ctx, u, attempt, acc); err != nil {
			log.ErrorContext(ctx, "failed to record publish outcome", "platform", p, "error", err)
			return
		}
	}

	// Accounts skipped during this pass no longer hold the item back.
	var still []models.Platform
	for _, p := range eligible {
		if u.active(publishers[p]) {
			still = append(still, p)
		}
	}
	status, err := attempt.Finish(context.WithoutCancel(ctx), still)
	if err != nil {
		log.ErrorContext(ctx, "failed to settle content", "error", err)
		return
	}
	if status != models.ContentStatusScheduled {
		log.InfoContext(ctx, "content settled",
			"status", status,
			"posted", attempt.Content.PostedPlatforms,
			"failed", attempt.Content.FailedPlatforms,
		)
	}
}

// publishTo runs one delivery. Only bookkeeping failures are returned.
func (s *Scheduler) publishTo(ctx context.Context, u *unit, attempt *content.Attempt, acc *models.PlatformAccount) error {
	r, ok := s.reserve(ctx, u, acc, attempt.Content.QuotaKind())
	if !ok {
		return nil
	}

	adapter := s.resolve(ctx, u, acc)
	if adapter == nil {
		s.finishReservation(ctx, u, r, false)
		return nil
	}
	if err := s.pacer.wait(ctx, u.persona.ID); err != nil {
		s.finishReservation(ctx, u, r, false)
		return nil
	}

	res, err := call(ctx, s.cfg.AdapterTimeout, acc.Platform, "publish", func(ctx context.Context) (platform.PostResult, error) {
		return adapter.Publish(ctx, attempt.Content)
	})
	s.pacer.mark(u.persona.ID)
	s.finishReservation(ctx, u, r, err == nil)
	s.settle(ctx, u, acc, "publish", err)

	store := context.WithoutCancel(ctx)
	if err != nil {
		failed, recErr := attempt.RecordFailure(store, acc, err)
		if failed {
			u.log.WarnContext(ctx, "giving up on platform for content", "content_id", attempt.Content.ID, "platform", acc.Platform, "retry_count", attempt.Content.RetryCount)
		}
		return recErr
	}

	u.tally.published.Add(1)
	u.log.InfoContext(ctx, "content published", "content_id", attempt.Content.ID, "account_id", acc.ID, "platform", acc.Platform, "url", res.URL)
	return attempt.RecordSuccess(store, acc, res)
}

// Package content drives content items through review, publishing and
// per-platform delivery bookkeeping.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

var (
	ErrNotDue = apperr.StateConflict("content is not due yet")
	ErrBusy   = apperr.StateConflict("content is already being published")
)

// Review transitions. SCHEDULED -> POSTING and the way out of POSTING are
// owned by Begin and Attempt.
var transitions = map[models.ContentStatus][]models.ContentStatus{
	models.ContentStatusDraft:         {models.ContentStatusPendingReview, models.ContentStatusScheduled, models.ContentStatusRejected},
	models.ContentStatusPendingReview: {models.ContentStatusScheduled, models.ContentStatusDraft, models.ContentStatusRejected},
	models.ContentStatusScheduled:     {models.ContentStatusRejected},
}

func CanTransition(from, to models.ContentStatus) bool {
	return slices.Contains(transitions[from], to)
}

type Lifecycle struct {
	repo         repository.ContentRepository
	clock        clock.Clock
	retryCeiling int
	logger       *slog.Logger
}

func NewLifecycle(repo repository.ContentRepository, clk clock.Clock, retryCeiling int, log *slog.Logger) *Lifecycle {
	return &Lifecycle{
		repo:         repo,
		clock:        clk,
		retryCeiling: retryCeiling,
		logger:       logger.OrDiscard(log).With("component", "content_lifecycle"),
	}
}

// Transition applies a review transition if the item is still in from.
func (l *Lifecycle) Transition(ctx context.Context, id int64, from, to models.ContentStatus) error {
	if !CanTransition(from, to) {
		return apperr.Validation(fmt.Sprintf("content cannot move from %s to %s", from, to))
	}
	ok, err := l.repo.UpdateStatusIf(ctx, id, from, to)
	if err != nil {
		return fmt.Errorf("updating content %d: %w", id, err)
	}
	if !ok {
		return apperr.StateConflict(fmt.Sprintf("content %d is no longer %s", id, from))
	}
	return nil
}

func (l *Lifecycle) Submit(ctx context.Context, id int64) error {
	return l.Transition(ctx, id, models.ContentStatusDraft, models.ContentStatusPendingReview)
}

func (l *Lifecycle) Approve(ctx context.Context, id int64) error {
	return l.Transition(ctx, id, models.ContentStatusPendingReview, models.ContentStatusScheduled)
}

// Reject moves the item to REJECTED from whichever pre-publish state it is in.
func (l *Lifecycle) Reject(ctx context.Context, id int64) error {
	c, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return repository.ErrNotFound
	}
	return l.Transition(ctx, id, c.Status, models.ContentStatusRejected)
}

// Begin claims a due SCHEDULED item for publishing. Only one caller can win
// the claim; the others get ErrBusy.
func (l *Lifecycle) Begin(ctx context.Context, c *models.Content) (*Attempt, error) {
	if c.ScheduledFor != nil && c.ScheduledFor.After(l.clock.Now()) {
		return nil, ErrNotDue
	}
	ok, err := l.repo.UpdateStatusIf(ctx, c.ID, models.ContentStatusScheduled, models.ContentStatusPosting)
	if err != nil {
		return nil, fmt.Errorf("claiming content %d: %w", c.ID, err)
	}
	if !ok {
		return nil, ErrBusy
	}

	// Reload so bookkeeping starts from what is stored, not from a stale listing.
	fresh, err := l.repo.GetByID(ctx, c.ID)
	if err != nil || fresh == nil {
		if _, relErr := l.repo.UpdateStatusIf(ctx, c.ID, models.ContentStatusPosting, models.ContentStatusScheduled); relErr != nil {
			l.logger.ErrorContext(ctx, "failed to unclaim content", "content_id", c.ID, "error", relErr)
		}
		if err == nil {
			err = repository.ErrNotFound
		}
		return nil, fmt.Errorf("reloading content %d: %w", c.ID, err)
	}
	fresh.Status = models.ContentStatusPosting
	return &Attempt{l: l, Content: fresh}, nil
}

// RequeueStuck releases claims older than age, left behind by a crash.
func (l *Lifecycle) RequeueStuck(ctx context.Context, age time.Duration) (int, error) {
	n, err := l.repo.RequeueStuck(ctx, l.clock.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("requeueing stuck content: %w", err)
	}
	if n > 0 {
		l.logger.WarnContext(ctx, "requeued content left in posting", "count", n)
	}
	return n, nil
}

// Attempt is one claimed publishing pass over an item. Every outcome is
// persisted as it is recorded, so progress survives a crash mid-pass.
type Attempt struct {
	l       *Lifecycle
	Content *models.Content
	done    bool
}

// Pending lists targeted platforms that still need a delivery.
func (a *Attempt) Pending() []models.Platform {
	var out []models.Platform
	for _, p := range a.Content.TargetPlatforms {
		if !a.Content.Settled(models.Platform(p)) {
			out = append(out, models.Platform(p))
		}
	}
	return out
}

func (a *Attempt) RecordSuccess(ctx context.Context, account *models.PlatformAccount, res platform.PostResult) error {
	c := a.Content
	if !c.PostedTo(account.Platform) {
		c.PostedPlatforms = append(c.PostedPlatforms, string(account.Platform))
	}
	if c.PostedAt == nil {
		now := a.l.clock.Now()
		c.PostedAt = &now
	}

	a.recordDelivery(ctx, &models.ContentDelivery{
		ContentID:      c.ID,
		AccountID:      account.ID,
		Platform:       account.Platform,
		PlatformPostID: res.PlatformPostID,
		URL:            res.URL,
		Success:        true,
	})
	return a.save(ctx)
}

// RecordFailure counts a failed publish. The platform is given up on when the
// failure is permanent or the retry ceiling has been reached. It reports
// whether the platform is now permanently failed.
func (a *Attempt) RecordFailure(ctx context.Context, account *models.PlatformAccount, cause error) (bool, error) {
	c := a.Content
	c.RetryCount++
	c.ErrorMessage = fmt.Sprintf("%s: %v", account.Platform, cause)

	kind, expected := platform.KindOf(cause)
	permanent := (expected && kind == platform.KindPermanent) || c.RetryCount >= a.l.retryCeiling
	if permanent && !c.FailedOn(account.Platform) {
		c.FailedPlatforms = append(c.FailedPlatforms, string(account.Platform))
	}

	a.recordDelivery(ctx, &models.ContentDelivery{
		ContentID:    c.ID,
		AccountID:    account.ID,
		Platform:     account.Platform,
		Success:      false,
		ErrorMessage: cause.Error(),
	})
	return permanent, a.save(ctx)
}

func (a *Attempt) recordDelivery(ctx context.Context, d *models.ContentDelivery) {
	if _, err := a.l.repo.RecordDelivery(ctx, d); err != nil {
		a.l.logger.ErrorContext(ctx, "failed to record delivery", "content_id", d.ContentID, "platform", d.Platform, "error", err)
	}
}

func (a *Attempt) save(ctx context.Context) error {
	ok, err := a.l.repo.SaveProgress(ctx, a.Content, models.ContentStatusPosting)
	if err != nil {
		return fmt.Errorf("saving content %d: %w", a.Content.ID, err)
	}
	if !ok {
		return apperr.StateConflict(fmt.Sprintf("content %d left posting while being published", a.Content.ID))
	}
	return nil
}

// Finish settles the item. eligible are the targeted platforms that had a
// usable, unpaused account this pass. The item is POSTED once every eligible
// platform is settled and something was delivered, FAILED once every targeted
// platform failed, and otherwise goes back to SCHEDULED for the next pass.
func (a *Attempt) Finish(ctx context.Context, eligible []models.Platform) (models.ContentStatus, error) {
	if a.done {
		return a.Content.Status, nil
	}
	c := a.Content

	allFailed := len(c.TargetPlatforms) > 0
	for _, p := range c.TargetPlatforms {
		if !c.FailedOn(models.Platform(p)) {
			allFailed = false
			break
		}
	}
	eligibleSettled := true
	for _, p := range eligible {
		if c.Targets(p) && !c.Settled(p) {
			eligibleSettled = false
			break
		}
	}

	switch {
	case allFailed && len(c.PostedPlatforms) == 0:
		c.Status = models.ContentStatusFailed
	case eligibleSettled && len(c.PostedPlatforms) > 0:
		c.Status = models.ContentStatusPosted
	default:
		c.Status = models.ContentStatusScheduled
	}

	if err := a.save(ctx); err != nil {
		return "", err
	}
	a.done = true
	return c.Status, nil
}

// Abort hands the item back to SCHEDULED with whatever progress was recorded.
// It is a no-op after Finish.
func (a *Attempt) Abort(ctx context.Context) {
	if a.done {
		return
	}
	a.done = true
	a.Content.Status = models.ContentStatusScheduled
	if _, err := a.l.repo.SaveProgress(ctx, a.Content, models.ContentStatusPosting); err != nil && !errors.Is(err, context.Canceled) {
		a.l.logger.ErrorContext(ctx, "failed to release content", "content_id", a.Content.ID, "error", err)
	}
}

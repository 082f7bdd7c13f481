package content_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
	"github.com/maheshrc27/persona-scheduler/internal/repository/memory"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo repository.ContentRepository
	clk  *clock.Fake
	lc   *content.Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New().Repositories()
	clk := clock.NewFake(now)
	return &fixture{
		repo: repos.Contents,
		clk:  clk,
		lc:   content.NewLifecycle(repos.Contents, clk, 3, nil),
	}
}

func (f *fixture) create(t *testing.T, status models.ContentStatus, targets ...models.Platform) *models.Content {
	t.Helper()
	c := &models.Content{PersonaID: 1, Type: models.ContentTypePost, Status: status, Caption: "hello"}
	for _, p := range targets {
		c.TargetPlatforms = append(c.TargetPlatforms, string(p))
	}
	id, err := f.repo.Create(context.Background(), c)
	require.NoError(t, err)
	c.ID = id
	return c
}

func (f *fixture) load(t *testing.T, id int64) *models.Content {
	t.Helper()
	c, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func account(id int64, p models.Platform) *models.PlatformAccount {
	return &models.PlatformAccount{ID: id, PersonaID: 1, Platform: p, IsConnected: true}
}

func TestReviewTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusDraft, models.PlatformInstagram)

	require.NoError(t, f.lc.Submit(ctx, c.ID))
	require.NoError(t, f.lc.Approve(ctx, c.ID))
	assert.Equal(t, models.ContentStatusScheduled, f.load(t, c.ID).Status)

	err := f.lc.Approve(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	err = f.lc.Transition(ctx, c.ID, models.ContentStatusScheduled, models.ContentStatusPosted)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.lc.Reject(ctx, c.ID))
	assert.Equal(t, models.ContentStatusRejected, f.load(t, c.ID).Status)
}

func TestBeginRespectsScheduledFor(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram)
	later := now.Add(time.Hour)
	c.ScheduledFor = &later

	_, err := f.lc.Begin(context.Background(), c)
	assert.ErrorIs(t, err, content.ErrNotDue)
}

func TestBeginIsExclusive(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		busy int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.lc.Begin(context.Background(), c)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, content.ErrBusy):
				busy++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, busy)
	assert.Equal(t, models.ContentStatusPosting, f.load(t, c.ID).Status)
}

func TestPartialSuccessEndsPosted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram, models.PlatformTwitter)

	at, err := f.lc.Begin(ctx, c)
	require.NoError(t, err)

	require.NoError(t, at.RecordSuccess(ctx, account(1, models.PlatformInstagram), platform.PostResult{PlatformPostID: "ig-1"}))
	failed, err := at.RecordFailure(ctx, account(2, models.PlatformTwitter),
		platform.Permanent(models.PlatformTwitter, "publish", errors.New("duplicate content")))
	require.NoError(t, err)
	assert.True(t, failed)

	status, err := at.Finish(ctx, []models.Platform{models.PlatformInstagram, models.PlatformTwitter})
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusPosted, status)

	stored := f.load(t, c.ID)
	assert.Equal(t, models.ContentStatusPosted, stored.Status)
	assert.Equal(t, pq.StringArray{"instagram"}, stored.PostedPlatforms)
	assert.Equal(t, pq.StringArray{"twitter"}, stored.FailedPlatforms)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.PostedAt)

	deliveries, err := f.repo.ListDeliveries(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)
}

func TestAllPlatformsFailedEndsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram, models.PlatformTwitter)

	at, err := f.lc.Begin(ctx, c)
	require.NoError(t, err)
	for i, p := range []models.Platform{models.PlatformInstagram, models.PlatformTwitter} {
		_, err := at.RecordFailure(ctx, account(int64(i+1), p), platform.Unsupported(p, "publish"))
		require.NoError(t, err)
	}

	status, err := at.Finish(ctx, []models.Platform{models.PlatformInstagram, models.PlatformTwitter})
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusFailed, status)
	assert.Empty(t, f.load(t, c.ID).PostedPlatforms)
}

func TestTransientFailuresHitCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusScheduled, models.PlatformTwitter)
	timeout := platform.Transient(models.PlatformTwitter, "publish", context.DeadlineExceeded)

	for attempt := 1; attempt <= 3; attempt++ {
		at, err := f.lc.Begin(ctx, f.load(t, c.ID))
		require.NoError(t, err)
		failed, err := at.RecordFailure(ctx, account(1, models.PlatformTwitter), timeout)
		require.NoError(t, err)
		assert.Equal(t, attempt == 3, failed)

		status, err := at.Finish(ctx, []models.Platform{models.PlatformTwitter})
		require.NoError(t, err)
		if attempt < 3 {
			assert.Equal(t, models.ContentStatusScheduled, status)
		} else {
			assert.Equal(t, models.ContentStatusFailed, status)
		}
	}

	stored := f.load(t, c.ID)
	assert.Equal(t, 3, stored.RetryCount)
	assert.Empty(t, stored.PostedPlatforms)
}

func TestSuccessIsRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram, models.PlatformFanvue)

	at, err := f.lc.Begin(ctx, c)
	require.NoError(t, err)
	require.NoError(t, at.RecordSuccess(ctx, account(1, models.PlatformInstagram), platform.PostResult{}))
	require.NoError(t, at.RecordSuccess(ctx, account(1, models.PlatformInstagram), platform.PostResult{}))

	assert.Equal(t, []models.Platform{models.PlatformFanvue}, at.Pending())

	// fanvue has no usable account this pass
	status, err := at.Finish(ctx, []models.Platform{models.PlatformInstagram})
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusPosted, status)
	assert.Equal(t, pq.StringArray{"instagram"}, f.load(t, c.ID).PostedPlatforms)
}

func TestAbortKeepsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram, models.PlatformTwitter)

	at, err := f.lc.Begin(ctx, c)
	require.NoError(t, err)
	require.NoError(t, at.RecordSuccess(ctx, account(1, models.PlatformInstagram), platform.PostResult{}))
	at.Abort(ctx)

	stored := f.load(t, c.ID)
	assert.Equal(t, models.ContentStatusScheduled, stored.Status)
	assert.Equal(t, pq.StringArray{"instagram"}, stored.PostedPlatforms)

	again, err := f.lc.Begin(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, []models.Platform{models.PlatformTwitter}, again.Pending())
}

func TestRequeueStuck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, models.ContentStatusScheduled, models.PlatformInstagram)
	_, err := f.lc.Begin(ctx, c)
	require.NoError(t, err)

	f.clk.Set(time.Now().Add(time.Hour))
	n, err := f.lc.RequeueStuck(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.ContentStatusScheduled, f.load(t, c.ID).Status)
}

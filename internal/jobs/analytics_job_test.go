package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/platform/platformtest"
	"github.com/maheshrc27/persona-scheduler/internal/repository/memory"
)

type failingStats struct {
	*platformtest.Adapter
	err error
}

func (f failingStats) FetchAnalytics(context.Context) (platform.Analytics, error) {
	return platform.Analytics{}, f.err
}

func TestAnalyticsJobSync(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

	create := func(p models.Platform, connected bool) *models.PlatformAccount {
		acc := &models.PlatformAccount{PersonaID: 1, Platform: p, IsConnected: connected}
		id, err := repos.Accounts.Create(ctx, acc)
		require.NoError(t, err)
		acc.ID = id
		return acc
	}
	healthy := create(models.PlatformInstagram, true)
	revoked := create(models.PlatformTwitter, true)
	create(models.PlatformYoutube, true)
	create(models.PlatformFanvue, false)

	ig := platformtest.New(models.PlatformInstagram)
	ig.Stats = platform.Analytics{Followers: 1200, Following: 80, MediaCount: 42}
	tw := failingStats{
		Adapter: platformtest.New(models.PlatformTwitter),
		err:     platform.Auth(models.PlatformTwitter, "analytics", errors.New("token revoked")),
	}

	registry := platform.NewRegistry(nil)
	registry.Register(models.PlatformInstagram, platformtest.Factory(map[int64]*platformtest.Adapter{healthy.ID: ig}))
	registry.Register(models.PlatformTwitter, func(context.Context, *models.PlatformAccount) (platform.Adapter, error) {
		return tw, nil
	})

	j := NewAnalyticsJob(ctx, repos.Accounts, registry, clock.NewFake(now), 2, time.Second, nil)
	updated, err := j.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	got, err := repos.Accounts.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200, got.FollowersCount)
	assert.Equal(t, 80, got.FollowingCount)
	assert.Equal(t, 42, got.MediaCount)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, now.Equal(*got.LastSyncedAt))

	got, err = repos.Accounts.GetByID(ctx, revoked.ID)
	require.NoError(t, err)
	assert.Contains(t, got.ConnectionError, "token revoked")
	assert.True(t, tw.Closed())
}

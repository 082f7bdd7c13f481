package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

// AnalyticsJob refreshes follower and media counts of every connected account.
type AnalyticsJob struct {
	ctx         context.Context
	accounts    repository.PlatformAccountRepository
	registry    *platform.Registry
	clock       clock.Clock
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

func NewAnalyticsJob(
	ctx context.Context,
	accounts repository.PlatformAccountRepository,
	registry *platform.Registry,
	clk clock.Clock,
	concurrency int,
	timeout time.Duration,
	log *slog.Logger) *AnalyticsJob {
	if concurrency <= 0 {
		concurrency = 10
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &AnalyticsJob{
		ctx:         ctx,
		accounts:    accounts,
		registry:    registry,
		clock:       clk,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger.OrDiscard(log).With("job", "analytics"),
	}
}

func (j *AnalyticsJob) Run() {
	if _, err := j.Sync(j.ctx); err != nil {
		j.logger.Error("analytics sync failed", "error", err)
	}
}

// Sync fetches analytics for every connected account and returns how many
// accounts were updated. Per-account failures are logged, not returned.
func (j *AnalyticsJob) Sync(ctx context.Context) (int, error) {
	accounts, err := j.accounts.ListConnected(ctx)
	if err != nil {
		return 0, err
	}

	var (
		wg      sync.WaitGroup
		updated atomic.Int64
	)
	semaphore := make(chan struct{}, j.concurrency)

	for _, acc := range accounts {
		if !acc.Usable() {
			continue
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return int(updated.Load()), ctx.Err()
		}

		wg.Add(1)
		go func(acc *models.PlatformAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()
			if j.syncAccount(ctx, acc) {
				updated.Add(1)
			}
		}(acc)
	}

	wg.Wait()
	return int(updated.Load()), nil
}

func (j *AnalyticsJob) syncAccount(ctx context.Context, acc *models.PlatformAccount) bool {
	log := j.logger.With("account_id", acc.ID, "platform", acc.Platform)

	adapter, err := j.registry.Resolve(ctx, acc)
	if err != nil {
		if !errors.Is(err, platform.ErrUnavailable) {
			j.fail(ctx, log, acc, err)
		}
		return false
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	stats, err := adapter.FetchAnalytics(ctx)
	if err != nil {
		j.fail(ctx, log, acc, err)
		return false
	}

	if err := j.accounts.UpdateAnalytics(ctx, acc.ID, stats.Followers, stats.Following, stats.MediaCount, j.clock.Now()); err != nil {
		log.ErrorContext(ctx, "failed to store analytics", "error", err)
		return false
	}
	return true
}

func (j *AnalyticsJob) fail(ctx context.Context, log *slog.Logger, acc *models.PlatformAccount, err error) {
	if !platform.IsAuth(err) {
		log.WarnContext(ctx, "unable to fetch analytics", "error", err)
		return
	}
	j.registry.Evict(acc)
	if setErr := j.accounts.SetConnectionError(ctx, acc.ID, err.Error()); setErr != nil {
		log.ErrorContext(ctx, "failed to store connection error", "error", setErr)
	}
	log.WarnContext(ctx, "account needs reconnecting", "error", err)
}

package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/scheduler"
)

type Ticker interface {
	Tick(ctx context.Context) (*scheduler.Report, error)
}

// TickJob drives scheduler passes from cron. A run that finds the previous
// pass still going is skipped.
type TickJob struct {
	ctx     context.Context
	ticker  Ticker
	timeout time.Duration
	running atomic.Bool
	logger  *slog.Logger

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewTickJob binds the job to ctx; cancelling it stops the pass in flight.
func NewTickJob(ctx context.Context, ticker Ticker, timeout time.Duration, log *slog.Logger) *TickJob {
	return &TickJob{
		ctx:     ctx,
		ticker:  ticker,
		timeout: timeout,
		logger:  logger.OrDiscard(log).With("job", "tick"),
	}
}

// Run is the cron entry point.
func (j *TickJob) Run() {
	_, _ = j.RunOnce(j.ctx)
}

// RunOnce runs one pass unless one is already in progress, in which case it
// returns false.
func (j *TickJob) RunOnce(ctx context.Context) (bool, error) {
	if !j.enter() {
		j.logger.Info("draining, tick not started")
		return false, nil
	}
	defer j.inflight.Done()

	if !j.running.CompareAndSwap(false, true) {
		j.logger.Warn("previous tick still running, skipping")
		return false, nil
	}
	defer j.running.Store(false)

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	if _, err := j.ticker.Tick(ctx); err != nil {
		j.logger.Error("tick failed", "error", err)
		return true, err
	}
	return true, nil
}

// Wait stops new passes from starting and blocks until the one in flight,
// if any, has returned.
func (j *TickJob) Wait() {
	j.mu.Lock()
	j.draining = true
	j.mu.Unlock()
	j.inflight.Wait()
}

func (j *TickJob) enter() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.draining {
		return false
	}
	j.inflight.Add(1)
	return true
}

// Package scheduler runs the tick loop that publishes due content, engages
// with other accounts and answers direct messages for every active persona.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	config "github.com/maheshrc27/persona-scheduler/configs"
	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/engagement"
	"github.com/maheshrc27/persona-scheduler/internal/generator"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/metrics"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/quota"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type Config struct {
	Concurrency       int
	AdapterTimeout    time.Duration
	MinActionDelay    time.Duration
	MaxActionDelay    time.Duration
	MaxActionsPerTick int
	HistoryLimit      int
}

func ConfigFrom(c config.Scheduler) Config {
	return Config{
		Concurrency:       c.WorkerConcurrency,
		AdapterTimeout:    c.AdapterTimeout,
		MinActionDelay:    c.MinActionDelay,
		MaxActionDelay:    c.MaxActionDelay,
		MaxActionsPerTick: c.MaxActionsPerTick,
		HistoryLimit:      20,
	}
}

type Deps struct {
	Repos         *repository.Repositories
	Quota         *quota.Tracker
	Registry      *platform.Registry
	Content       *content.Lifecycle
	Conversations *conversation.Lifecycle
	Planner       *engagement.Planner
	Responder     generator.Responder
	Clock         clock.Clock
	Logger        *slog.Logger
}

type Scheduler struct {
	repos     *repository.Repositories
	quota     *quota.Tracker
	registry  *platform.Registry
	content   *content.Lifecycle
	convs     *conversation.Lifecycle
	planner   *engagement.Planner
	responder generator.Responder
	clock     clock.Clock
	cfg       Config
	pacer     *pacer
	logger    *slog.Logger

	unsupported kindSet
}

func New(d Deps, cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Scheduler{
		repos:     d.Repos,
		quota:     d.Quota,
		registry:  d.Registry,
		content:   d.Content,
		convs:     d.Conversations,
		planner:   d.Planner,
		responder: d.Responder,
		clock:     clk,
		cfg:       cfg,
		pacer:     newPacer(clk, cfg.MinActionDelay, cfg.MaxActionDelay),
		logger:    logger.OrDiscard(d.Logger).With("component", "scheduler"),
	}
}

// Report summarizes one tick.
type Report struct {
	TickID    string
	Personas  int
	Published int
	Engaged   int
	Replied   int
	Denied    int
	Failed    int
}

type tally struct {
	published, engaged, replied, denied, failed atomic.Int64
}

// Tick runs one pass over every active persona. Personas run concurrently up
// to the configured limit; a failure inside one persona never stops the
// others. The returned error is set only when the pass could not start or
// was cancelled.
func (s *Scheduler) Tick(ctx context.Context) (*Report, error) {
	started := time.Now()
	tickID := uuid.NewString()
	log := s.logger.With("tick_id", tickID)
	defer func() { metrics.TickDuration.Observe(time.Since(started).Seconds()) }()

	personas, err := s.repos.Personas.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active personas: %w", err)
	}

	var t tally
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, p := range personas {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.runPersona(ctx, log.With("persona_id", p.ID), p, &t)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		TickID:    tickID,
		Personas:  len(personas),
		Published: int(t.published.Load()),
		Engaged:   int(t.engaged.Load()),
		Replied:   int(t.replied.Load()),
		Denied:    int(t.denied.Load()),
		Failed:    int(t.failed.Load()),
	}
	log.Info("tick finished",
		"personas", report.Personas,
		"published", report.Published,
		"engaged", report.Engaged,
		"replied", report.Replied,
		"denied", report.Denied,
		"failed", report.Failed,
		"duration", time.Since(started),
	)
	return report, ctx.Err()
}

// unit is the work of one persona within a tick.
type unit struct {
	persona  *models.Persona
	accounts []*models.PlatformAccount
	log      *slog.Logger
	tally    *tally

	// skipped holds accounts that cannot be acted on for the rest of the
	// tick: no adapter, or an auth failure.
	skipped map[int64]bool
}

func (u *unit) active(acc *models.PlatformAccount) bool {
	return !u.skipped[acc.ID]
}

func (s *Scheduler) runPersona(ctx context.Context, log *slog.Logger, persona *models.Persona, t *tally) {
	defer func() {
		if r := recover(); r != nil {
			metrics.UnitFailures.WithLabelValues("persona").Inc()
			log.Error("persona unit panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	all, err := s.repos.Accounts.ListByPersona(ctx, persona.ID)
	if err != nil {
		metrics.UnitFailures.WithLabelValues("accounts").Inc()
		log.ErrorContext(ctx, "failed to list accounts", "error", err)
		return
	}
	u := &unit{persona: persona, skipped: make(map[int64]bool), log: log, tally: t}
	for _, acc := range all {
		if acc.Usable() {
			u.accounts = append(u.accounts, acc)
		}
	}
	if len(u.accounts) == 0 {
		return
	}

	s.publishDue(ctx, u)

	for _, acc := range u.accounts {
		if ctx.Err() != nil {
			return
		}
		if !acc.EngagementPaused && u.active(acc) {
			s.engage(ctx, u, acc)
		}
	}

	for _, acc := range u.accounts {
		if ctx.Err() != nil {
			return
		}
		if u.active(acc) {
			s.converse(ctx, u, acc)
		}
	}
}

// resolve returns the account's adapter, or nil when the account has to be
// skipped for the rest of the tick. Reasons are logged here.
func (s *Scheduler) resolve(ctx context.Context, u *unit, acc *models.PlatformAccount) platform.Adapter {
	adapter, err := s.registry.Resolve(ctx, acc)
	if err == nil {
		return adapter
	}
	u.skipped[acc.ID] = true
	switch {
	case errors.Is(err, platform.ErrUnavailable):
		u.log.WarnContext(ctx, "no adapter for platform, skipping account", "account_id", acc.ID, "platform", acc.Platform)
	case platform.IsAuth(err):
		s.suspend(ctx, u, acc, err)
	default:
		metrics.UnitFailures.WithLabelValues("resolve").Inc()
		u.log.ErrorContext(ctx, "failed to build adapter", "account_id", acc.ID, "platform", acc.Platform, "error", err)
	}
	return nil
}

// suspend records an auth failure on the account and drops its adapter so
// nothing else runs on it until it is reconnected.
func (s *Scheduler) suspend(ctx context.Context, u *unit, acc *models.PlatformAccount, cause error) {
	u.skipped[acc.ID] = true
	s.registry.Evict(acc)
	if err := s.repos.Accounts.SetConnectionError(context.WithoutCancel(ctx), acc.ID, cause.Error()); err != nil {
		u.log.ErrorContext(ctx, "failed to store connection error", "account_id", acc.ID, "error", err)
	}
	u.log.WarnContext(ctx, "account suspended after auth failure", "account_id", acc.ID, "platform", acc.Platform, "error", cause)
}

// settle logs and counts the outcome of an adapter call.
func (s *Scheduler) settle(ctx context.Context, u *unit, acc *models.PlatformAccount, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = apperr.Code(err)
		if outcome == apperr.CodeUnknown {
			outcome = apperr.CodeInternal
		}
		u.tally.failed.Add(1)
	}
	metrics.ActionsTotal.WithLabelValues(string(acc.Platform), op, outcome).Inc()

	if err == nil {
		return
	}
	log := u.log.With("account_id", acc.ID, "platform", acc.Platform, "op", op, "error", err)
	switch _, expected := platform.KindOf(err); {
	case platform.IsAuth(err):
		s.suspend(ctx, u, acc, err)
	case expected:
		log.WarnContext(ctx, "platform action failed")
	default:
		metrics.UnitFailures.WithLabelValues(op).Inc()
		log.ErrorContext(ctx, "platform action faulted")
	}
}

// reserve takes a quota slot, reporting false when the action must be skipped.
func (s *Scheduler) reserve(ctx context.Context, u *unit, acc *models.PlatformAccount, kind models.ActionKind) (*quota.Reservation, bool) {
	r, err := s.quota.Reserve(ctx, u.persona.ID, acc.ID, kind)
	if err == nil {
		return r, true
	}
	if errors.Is(err, apperr.ErrQuotaExhausted) {
		u.tally.denied.Add(1)
		u.log.InfoContext(ctx, "quota exhausted", "account_id", acc.ID, "kind", kind, "reason", err)
	} else {
		metrics.UnitFailures.WithLabelValues("quota").Inc()
		u.log.ErrorContext(ctx, "quota reservation failed", "account_id", acc.ID, "kind", kind, "error", err)
	}
	return nil, false
}

func (s *Scheduler) finishReservation(ctx context.Context, u *unit, r *quota.Reservation, succeeded bool) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if succeeded {
		err = s.quota.Commit(ctx, r)
	} else {
		err = s.quota.Release(ctx, r)
	}
	if err != nil {
		u.log.ErrorContext(ctx, "failed to settle reservation", "kind", r.Kind, "committed", succeeded, "error", err)
	}
}

// call runs fn under the adapter timeout. The call is detached from ctx so a
// cancelled tick lets it finish or time out instead of cutting it off.
func call[T any](ctx context.Context, timeout time.Duration, p models.Platform, op string, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s %s panicked: %v", p, op, r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			if _, expected := platform.KindOf(r.err); !expected {
				r.err = platform.Transient(p, op, r.err)
			}
		}
		return r.v, r.err
	case <-callCtx.Done():
		var zero T
		return zero, platform.Transient(p, op, fmt.Errorf("no response within %s: %w", timeout, callCtx.Err()))
	}
}

func callErr(ctx context.Context, timeout time.Duration, p models.Platform, op string, fn func(context.Context) error) error {
	_, err := call(ctx, timeout, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

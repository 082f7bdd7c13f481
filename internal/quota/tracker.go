// Package quota enforces daily per-persona and per-account action caps with a
// two-phase reserve / commit / release protocol.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/maheshrc27/persona-scheduler/configs"
	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/metrics"
	"github.com/maheshrc27/persona-scheduler/internal/models"
)

var ErrReservationSettled = errors.New("reservation already settled")

// Defaults are the process-wide caps used when a scope has no override.
type Defaults map[models.ActionKind]int

func DefaultsFromConfig(q config.Quotas) Defaults {
	return Defaults{
		models.ActionPost:      q.MaxPostsPerDay,
		models.ActionLike:      q.MaxLikesPerDay,
		models.ActionComment:   q.MaxCommentsPerDay,
		models.ActionFollow:    q.MaxFollowsPerDay,
		models.ActionVideoPost: q.MaxVideoPostsPerDay,
		models.ActionStory:     q.MaxStoriesPerDay,
		models.ActionReel:      q.MaxReelsPerDay,
		models.ActionNSFWPost:  q.MaxNSFWPostsPerDay,
	}
}

// DeniedError is returned when a reservation would exceed a cap. It matches
// apperr.ErrQuotaExhausted and is an expected outcome, not a fault.
type DeniedError struct {
	Scope  Scope
	Kind   models.ActionKind
	Limit  int
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("quota denied for %s on %s: %s (limit %d)", e.Kind, e.Scope, e.Reason, e.Limit)
}

func (e *DeniedError) Code() string { return apperr.CodeQuotaExhausted }

func (e *DeniedError) Is(target error) bool { return target == apperr.ErrQuotaExhausted }

type reservationState int

const (
	statePending reservationState = iota
	stateCommitted
	stateReleased
)

// Reservation is a provisionally consumed slot on one or more scopes.
type Reservation struct {
	Kind  models.ActionKind
	slots []Scope
	day   time.Time

	mu    sync.Mutex
	state reservationState
}

// Scopes returns the scopes whose counters this reservation holds.
func (r *Reservation) Scopes() []Scope {
	return append([]Scope(nil), r.slots...)
}

type Tracker struct {
	store    Store
	defaults Defaults
	clock    clock.Clock
	logger   *slog.Logger
}

func NewTracker(store Store, defaults Defaults, clk clock.Clock, log *slog.Logger) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Tracker{
		store:    store,
		defaults: defaults,
		clock:    clk,
		logger:   logger.OrDiscard(log).With("component", "quota"),
	}
}

// EffectiveCap resolves the cap for kind in snap. The second result is false
// when the scope does not track kind.
func (t *Tracker) EffectiveCap(snap Snapshot, kind models.ActionKind) (int, bool) {
	if _, tracked := snap.Counts[kind]; !tracked {
		return 0, false
	}
	if override := snap.Overrides[kind]; override != nil {
		return *override, true
	}
	return t.defaults[kind], true
}

// ResetIfStale zeroes the scope's counters once per UTC day.
func (t *Tracker) ResetIfStale(ctx context.Context, scope Scope, now time.Time) (bool, error) {
	reset, err := t.store.ResetIfStale(ctx, scope, clock.DayStart(now), now)
	if err != nil {
		return false, fmt.Errorf("resetting %s: %w", scope, err)
	}
	if reset {
		t.logger.DebugContext(ctx, "daily counters reset", "scope", scope.String())
	}
	return reset, nil
}

// CheckAndReserve provisionally consumes one slot of kind on a single scope.
func (t *Tracker) CheckAndReserve(ctx context.Context, scope Scope, kind models.ActionKind) (*Reservation, error) {
	now := t.clock.Now()
	r := &Reservation{Kind: kind, day: clock.DayStart(now)}
	if err := t.reserveSlot(ctx, r, scope, now); err != nil {
		return nil, err
	}
	return r, nil
}

// Reserve consumes one slot of kind at the persona scope and at the account
// scope. Both ceilings apply independently; if the account denies, the persona
// slot is returned before the denial is reported.
func (t *Tracker) Reserve(ctx context.Context, personaID, accountID int64, kind models.ActionKind) (*Reservation, error) {
	now := t.clock.Now()
	r := &Reservation{Kind: kind, day: clock.DayStart(now)}

	if err := t.reserveSlot(ctx, r, PersonaScope(personaID), now); err != nil {
		return nil, err
	}
	if err := t.reserveSlot(ctx, r, AccountScope(accountID), now); err != nil {
		if relErr := t.Release(ctx, r); relErr != nil {
			t.logger.ErrorContext(ctx, "failed to return persona slot", "persona_id", personaID, "kind", kind, "error", relErr)
		}
		return nil, err
	}
	return r, nil
}

func (t *Tracker) reserveSlot(ctx context.Context, r *Reservation, scope Scope, now time.Time) error {
	if _, err := t.ResetIfStale(ctx, scope, now); err != nil {
		return err
	}

	snap, err := t.store.Snapshot(ctx, scope)
	if err != nil {
		return fmt.Errorf("loading counters for %s: %w", scope, err)
	}

	limit, tracked := t.EffectiveCap(snap, r.Kind)
	if !tracked {
		return nil
	}
	if limit <= 0 {
		metrics.QuotaDenials.WithLabelValues(string(scope.Type), string(r.Kind)).Inc()
		return &DeniedError{Scope: scope, Kind: r.Kind, Limit: limit, Reason: "action kind disabled"}
	}

	ok, err := t.store.TryIncrement(ctx, scope, r.Kind, limit)
	if err != nil {
		return fmt.Errorf("reserving %s on %s: %w", r.Kind, scope, err)
	}
	if !ok {
		metrics.QuotaDenials.WithLabelValues(string(scope.Type), string(r.Kind)).Inc()
		return &DeniedError{Scope: scope, Kind: r.Kind, Limit: limit, Reason: "daily cap reached"}
	}

	r.slots = append(r.slots, scope)
	return nil
}

// Commit makes the reservation permanent. Committing twice is a no-op.
func (t *Tracker) Commit(_ context.Context, r *Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateReleased:
		return ErrReservationSettled
	default:
		r.state = stateCommitted
		return nil
	}
}

// Release returns every held slot. Releasing twice is a no-op; releasing a
// committed reservation fails.
func (t *Tracker) Release(ctx context.Context, r *Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateCommitted:
		return ErrReservationSettled
	case stateReleased:
		return nil
	}
	r.state = stateReleased

	// Counters reserved on a previous day were already zeroed by the reset.
	if !clock.DayStart(t.clock.Now()).Equal(r.day) {
		return nil
	}

	var errs []error
	for _, scope := range r.slots {
		if err := t.store.Decrement(ctx, scope, r.Kind); err != nil {
			errs = append(errs, fmt.Errorf("releasing %s on %s: %w", r.Kind, scope, err))
		}
	}
	return errors.Join(errs...)
}

// Remaining reports the slots left per kind, taking the tighter of the persona
// and account ceilings.
func (t *Tracker) Remaining(ctx context.Context, personaID, accountID int64) (map[models.ActionKind]int, error) {
	now := t.clock.Now()
	remaining := make(map[models.ActionKind]int, len(models.ActionKinds))
	for _, kind := range models.ActionKinds {
		remaining[kind] = -1
	}

	for _, scope := range []Scope{PersonaScope(personaID), AccountScope(accountID)} {
		if _, err := t.ResetIfStale(ctx, scope, now); err != nil {
			return nil, err
		}
		snap, err := t.store.Snapshot(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("loading counters for %s: %w", scope, err)
		}
		for _, kind := range models.ActionKinds {
			limit, tracked := t.EffectiveCap(snap, kind)
			if !tracked {
				continue
			}
			left := max(limit-snap.Counts[kind], 0)
			if remaining[kind] < 0 || left < remaining[kind] {
				remaining[kind] = left
			}
		}
	}

	for kind, left := range remaining {
		if left < 0 {
			remaining[kind] = 0
		}
	}
	return remaining, nil
}

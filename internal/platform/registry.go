package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
)

// Factory builds an adapter for one account.
type Factory func(ctx context.Context, account *models.PlatformAccount) (Adapter, error)

type cacheKey struct {
	platform  models.Platform
	accountID int64
}

// Registry resolves accounts to adapter instances. Instances are built
// lazily, cached per account and torn down by CloseAll.
type Registry struct {
	mu        sync.Mutex
	factories map[models.Platform]Factory
	cache     map[cacheKey]*serialAdapter
	logger    *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[models.Platform]Factory),
		cache:     make(map[cacheKey]*serialAdapter),
		logger:    logger.OrDiscard(log).With("component", "platform_registry"),
	}
}

func (r *Registry) Register(p models.Platform, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[p] = f
}

// Platforms lists the registered platforms.
func (r *Registry) Platforms() []models.Platform {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Platform, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	return out
}

// Resolve returns the cached adapter for the account, building it on first
// use. Unregistered platforms yield ErrUnavailable. The returned adapter
// runs at most one call at a time.
func (r *Registry) Resolve(ctx context.Context, account *models.PlatformAccount) (Adapter, error) {
	key := cacheKey{platform: account.Platform, accountID: account.ID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	factory, ok := r.factories[account.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, account.Platform)
	}

	inner, err := factory(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("building %s adapter for account %d: %w", account.Platform, account.ID, err)
	}

	wrapped := newSerialAdapter(inner)
	r.cache[key] = wrapped
	r.logger.DebugContext(ctx, "adapter created", "platform", account.Platform, "account_id", account.ID)
	return wrapped, nil
}

// Evict closes and forgets the account's adapter so the next Resolve picks
// up fresh credentials.
func (r *Registry) Evict(account *models.PlatformAccount) {
	key := cacheKey{platform: account.Platform, accountID: account.ID}

	r.mu.Lock()
	cached, ok := r.cache[key]
	delete(r.cache, key)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := cached.Close(); err != nil {
		r.logger.Warn("failed to close evicted adapter", "platform", account.Platform, "account_id", account.ID, "error", err)
	}
}

// CloseAll tears down every cached adapter. Failures are logged and returned
// together; one failing close never prevents the others.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	cached := r.cache
	r.cache = make(map[cacheKey]*serialAdapter)
	r.mu.Unlock()

	var errs []error
	for key, a := range cached {
		if err := a.Close(); err != nil {
			r.logger.Error("failed to close adapter", "platform", key.platform, "account_id", key.accountID, "error", err)
			errs = append(errs, fmt.Errorf("closing %s adapter for account %d: %w", key.platform, key.accountID, err))
		}
	}
	return errors.Join(errs...)
}

// AsMessenger returns the direct message capability of a, if it has one.
func AsMessenger(a Adapter) (Messenger, bool) {
	if s, ok := a.(*serialAdapter); ok {
		if _, ok := s.inner.(Messenger); !ok {
			return nil, false
		}
		return s, true
	}
	m, ok := a.(Messenger)
	return m, ok
}

// Supports reports whether a offers the engagement kind.
func Supports(a Adapter, kind models.ActionKind) bool {
	if s, ok := a.(*serialAdapter); ok {
		a = s.inner
	}
	if as, ok := a.(ActionSupporter); ok {
		return as.Supports(kind)
	}
	return true
}

// AsDiscoverer returns the target discovery capability of a, if it has one.
func AsDiscoverer(a Adapter) (Discoverer, bool) {
	if s, ok := a.(*serialAdapter); ok {
		if _, ok := s.inner.(Discoverer); !ok {
			return nil, false
		}
		return s, true
	}
	d, ok := a.(Discoverer)
	return d, ok
}

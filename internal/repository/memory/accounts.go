package memory

import (
	"context"
	"slices"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type accountRepo struct{ db *DB }

func (r *accountRepo) Create(_ context.Context, a *models.PlatformAccount) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := cloneAccount(a)
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.db.accounts[stored.ID] = stored
	return stored.ID, nil
}

func (r *accountRepo) GetByID(_ context.Context, id int64) (*models.PlatformAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *accountRepo) GetByExternalID(_ context.Context, p models.Platform, externalID string) (*models.PlatformAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.accounts {
		if a.Platform == p && a.ExternalID == externalID {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (r *accountRepo) ListByPersona(_ context.Context, personaID int64) ([]*models.PlatformAccount, error) {
	return r.list(func(a *models.PlatformAccount) bool { return a.PersonaID == personaID }), nil
}

func (r *accountRepo) ListConnected(_ context.Context) ([]*models.PlatformAccount, error) {
	return r.list((*models.PlatformAccount).Usable), nil
}

func (r *accountRepo) list(keep func(*models.PlatformAccount) bool) []*models.PlatformAccount {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.PlatformAccount
	for _, a := range r.db.accounts {
		if keep(a) {
			out = append(out, cloneAccount(a))
		}
	}
	sortByID(out, func(a *models.PlatformAccount) int64 { return a.ID })
	return out
}

func (r *accountRepo) update(id int64, fn func(*models.PlatformAccount)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *accountRepo) SetConnectionError(_ context.Context, id int64, message string) error {
	return r.update(id, func(a *models.PlatformAccount) { a.ConnectionError = message })
}

func (r *accountRepo) SetCredentials(_ context.Context, id int64, sealed []byte) error {
	return r.update(id, func(a *models.PlatformAccount) { a.Credentials = slices.Clone(sealed) })
}

func (r *accountRepo) SetPostingPaused(_ context.Context, id int64, paused bool) error {
	return r.update(id, func(a *models.PlatformAccount) { a.PostingPaused = paused })
}

func (r *accountRepo) SetEngagementPaused(_ context.Context, id int64, paused bool) error {
	return r.update(id, func(a *models.PlatformAccount) { a.EngagementPaused = paused })
}

func (r *accountRepo) UpdateAnalytics(_ context.Context, id int64, followers, following, media int, syncedAt time.Time) error {
	return r.update(id, func(a *models.PlatformAccount) {
		a.FollowersCount = followers
		a.FollowingCount = following
		a.MediaCount = media
		a.LastSyncedAt = &syncedAt
	})
}

package memory

import (
	"context"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type engagementRepo struct{ db *DB }

func (r *engagementRepo) Create(_ context.Context, e *models.Engagement) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := *e
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	r.db.engagements = append(r.db.engagements, &stored)
	return stored.ID, nil
}

func (r *engagementRepo) Settled(_ context.Context, accountID int64, kind models.ActionKind, targetID string, maxFailures int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	failures := 0
	for _, e := range r.db.engagements {
		if e.AccountID != accountID || e.Kind != kind || e.TargetID != targetID {
			continue
		}
		if e.Success || e.ErrorKind == models.EngagementErrorPermanent {
			return true, nil
		}
		failures++
	}
	return maxFailures > 0 && failures >= maxFailures, nil
}

func (r *engagementRepo) ListByPersona(_ context.Context, personaID int64, limit int) ([]*models.Engagement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.Engagement
	for i := len(r.db.engagements) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.db.engagements[i]; e.PersonaID == personaID {
			v := *e
			out = append(out, &v)
		}
	}
	return out, nil
}

package memory

import (
	"context"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type contentRepo struct{ db *DB }

func (r *contentRepo) Create(_ context.Context, c *models.Content) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := cloneContent(c)
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.db.contents[stored.ID] = stored
	return stored.ID, nil
}

func (r *contentRepo) GetByID(_ context.Context, id int64) (*models.Content, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.contents[id]
	if !ok {
		return nil, nil
	}
	return cloneContent(c), nil
}

func (r *contentRepo) ListDue(_ context.Context, personaID int64, now time.Time) ([]*models.Content, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.Content
	for _, c := range r.db.contents {
		if c.PersonaID != personaID || c.Status != models.ContentStatusScheduled {
			continue
		}
		if c.ScheduledFor != nil && c.ScheduledFor.After(now) {
			continue
		}
		out = append(out, cloneContent(c))
	}
	sortByID(out, func(c *models.Content) int64 { return c.ID })
	return out, nil
}

func (r *contentRepo) CountBacklog(_ context.Context, personaID int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := 0
	for _, c := range r.db.contents {
		if c.PersonaID != personaID {
			continue
		}
		switch c.Status {
		case models.ContentStatusDraft, models.ContentStatusPendingReview, models.ContentStatusScheduled:
			n++
		}
	}
	return n, nil
}

func (r *contentRepo) UpdateStatusIf(_ context.Context, id int64, from, to models.ContentStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.contents[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *contentRepo) SaveProgress(_ context.Context, c *models.Content, expected models.ContentStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.contents[c.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = c.Status
	stored.PostedPlatforms = cloneStrings(c.PostedPlatforms)
	stored.FailedPlatforms = cloneStrings(c.FailedPlatforms)
	stored.RetryCount = c.RetryCount
	stored.ErrorMessage = c.ErrorMessage
	stored.PostedAt = cloneTime(c.PostedAt)
	stored.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *contentRepo) RequeueStuck(_ context.Context, before time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := 0
	for _, c := range r.db.contents {
		if c.Status == models.ContentStatusPosting && c.UpdatedAt.Before(before) {
			c.Status = models.ContentStatusScheduled
			c.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (r *contentRepo) RecordDelivery(_ context.Context, d *models.ContentDelivery) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := *d
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	r.db.deliveries = append(r.db.deliveries, &stored)
	return stored.ID, nil
}

func (r *contentRepo) ListDeliveries(_ context.Context, contentID int64) ([]*models.ContentDelivery, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.ContentDelivery
	for _, d := range r.db.deliveries {
		if d.ContentID == contentID {
			v := *d
			out = append(out, &v)
		}
	}
	return out, nil
}

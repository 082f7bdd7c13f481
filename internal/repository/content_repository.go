package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, c *models.Content) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Content, error)
	// ListDue returns SCHEDULED items of the persona whose not-before time has passed.
	ListDue(ctx context.Context, personaID int64, now time.Time) ([]*models.Content, error)
	// CountBacklog counts items that are not yet published or terminal.
	CountBacklog(ctx context.Context, personaID int64) (int, error)
	// UpdateStatusIf moves the item from one status to another only if it is
	// still in the expected status. It reports whether the row changed.
	UpdateStatusIf(ctx context.Context, id int64, from, to models.ContentStatus) (bool, error)
	// SaveProgress writes the delivery bookkeeping of c conditioned on the
	// stored status still being expected.
	SaveProgress(ctx context.Context, c *models.Content, expected models.ContentStatus) (bool, error)
	// RequeueStuck returns POSTING items untouched since before to SCHEDULED.
	RequeueStuck(ctx context.Context, before time.Time) (int, error)
	RecordDelivery(ctx context.Context, d *models.ContentDelivery) (int64, error)
	ListDeliveries(ctx context.Context, contentID int64) ([]*models.ContentDelivery, error)
}

type contentRepository struct {
	db *sqlx.DB
}

func NewContentRepository(db *sqlx.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(ctx context.Context, c *models.Content) (int64, error) {
	query := `
		INSERT INTO contents (
			persona_id, content_type, status, caption, topic, media_urls, video_urls,
			is_nsfw, target_platforms, scheduled_for
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		c.PersonaID,
		c.Type,
		c.Status,
		c.Caption,
		c.Topic,
		c.MediaURLs,
		c.VideoURLs,
		c.IsNSFW,
		c.TargetPlatforms,
		c.ScheduledFor,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting content: %w", err)
	}
	return id, nil
}

func (r *contentRepository) GetByID(ctx context.Context, id int64) (*models.Content, error) {
	var c models.Content
	err := r.db.GetContext(ctx, &c, `SELECT * FROM contents WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *contentRepository) ListDue(ctx context.Context, personaID int64, now time.Time) ([]*models.Content, error) {
	query := `
		SELECT * FROM contents
		WHERE persona_id = $1
		AND status = $2
		AND (scheduled_for IS NULL OR scheduled_for <= $3)
		ORDER BY scheduled_for NULLS FIRST, id
	`

	var items []*models.Content
	if err := r.db.SelectContext(ctx, &items, query, personaID, models.ContentStatusScheduled, now); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *contentRepository) CountBacklog(ctx context.Context, personaID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM contents
		WHERE persona_id = $1 AND status IN ($2, $3, $4)
	`

	var n int
	err := r.db.GetContext(ctx, &n, query, personaID,
		models.ContentStatusDraft, models.ContentStatusPendingReview, models.ContentStatusScheduled)
	return n, err
}

func (r *contentRepository) UpdateStatusIf(ctx context.Context, id int64, from, to models.ContentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contents SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *contentRepository) RequeueStuck(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contents SET status = $1, updated_at = now() WHERE status = $2 AND updated_at < $3`,
		models.ContentStatusScheduled, models.ContentStatusPosting, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *contentRepository) SaveProgress(ctx context.Context, c *models.Content, expected models.ContentStatus) (bool, error) {
	query := `
		UPDATE contents
		SET status = $3,
			posted_platforms = $4,
			failed_platforms = $5,
			retry_count = $6,
			error_message = $7,
			posted_at = $8,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		c.ID,
		expected,
		c.Status,
		c.PostedPlatforms,
		c.FailedPlatforms,
		c.RetryCount,
		c.ErrorMessage,
		c.PostedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *contentRepository) RecordDelivery(ctx context.Context, d *models.ContentDelivery) (int64, error) {
	query := `
		INSERT INTO content_deliveries (content_id, account_id, platform, platform_post_id, url, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		d.ContentID, d.AccountID, d.Platform, d.PlatformPostID, d.URL, d.Success, d.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting delivery: %w", err)
	}
	return id, nil
}

func (r *contentRepository) ListDeliveries(ctx context.Context, contentID int64) ([]*models.ContentDelivery, error) {
	var deliveries []*models.ContentDelivery
	err := r.db.SelectContext(ctx, &deliveries,
		`SELECT * FROM content_deliveries WHERE content_id = $1 ORDER BY id`, contentID)
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

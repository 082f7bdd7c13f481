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

type PlatformAccountRepository interface {
	Create(ctx context.Context, a *models.PlatformAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error)
	GetByExternalID(ctx context.Context, p models.Platform, externalID string) (*models.PlatformAccount, error)
	ListByPersona(ctx context.Context, personaID int64) ([]*models.PlatformAccount, error)
	ListConnected(ctx context.Context) ([]*models.PlatformAccount, error)
	// SetConnectionError records an auth failure; an empty message reconnects.
	SetConnectionError(ctx context.Context, id int64, message string) error
	SetCredentials(ctx context.Context, id int64, sealed []byte) error
	SetPostingPaused(ctx context.Context, id int64, paused bool) error
	SetEngagementPaused(ctx context.Context, id int64, paused bool) error
	UpdateAnalytics(ctx context.Context, id int64, followers, following, media int, syncedAt time.Time) error
}

type platformAccountRepository struct {
	db *sqlx.DB
}

func NewPlatformAccountRepository(db *sqlx.DB) PlatformAccountRepository {
	return &platformAccountRepository{db: db}
}

func (r *platformAccountRepository) Create(ctx context.Context, a *models.PlatformAccount) (int64, error) {
	query := `
		INSERT INTO platform_accounts (
			persona_id, platform, external_id, handle, credentials, is_connected,
			engagement_paused, posting_paused,
			max_posts_per_day, max_video_posts_per_day, max_stories_per_day, max_reels_per_day,
			last_limit_reset
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		a.PersonaID,
		a.Platform,
		a.ExternalID,
		a.Handle,
		a.Credentials,
		a.IsConnected,
		a.EngagementPaused,
		a.PostingPaused,
		a.MaxPostsPerDay,
		a.MaxVideoPostsPerDay,
		a.MaxStoriesPerDay,
		a.MaxReelsPerDay,
		a.LastLimitReset,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting platform account: %w", err)
	}
	return id, nil
}

func (r *platformAccountRepository) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	var a models.PlatformAccount
	err := r.db.GetContext(ctx, &a, `SELECT * FROM platform_accounts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *platformAccountRepository) GetByExternalID(ctx context.Context, p models.Platform, externalID string) (*models.PlatformAccount, error) {
	var a models.PlatformAccount
	err := r.db.GetContext(ctx, &a,
		`SELECT * FROM platform_accounts WHERE platform = $1 AND external_id = $2`, p, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *platformAccountRepository) ListByPersona(ctx context.Context, personaID int64) ([]*models.PlatformAccount, error) {
	var accounts []*models.PlatformAccount
	err := r.db.SelectContext(ctx, &accounts,
		`SELECT * FROM platform_accounts WHERE persona_id = $1 ORDER BY id`, personaID)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *platformAccountRepository) ListConnected(ctx context.Context) ([]*models.PlatformAccount, error) {
	var accounts []*models.PlatformAccount
	err := r.db.SelectContext(ctx, &accounts,
		`SELECT * FROM platform_accounts WHERE is_connected = TRUE AND connection_error = '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *platformAccountRepository) SetConnectionError(ctx context.Context, id int64, message string) error {
	return r.exec(ctx, `UPDATE platform_accounts SET connection_error = $2, updated_at = now() WHERE id = $1`, id, message)
}

func (r *platformAccountRepository) SetCredentials(ctx context.Context, id int64, sealed []byte) error {
	return r.exec(ctx, `UPDATE platform_accounts SET credentials = $2, updated_at = now() WHERE id = $1`, id, sealed)
}

func (r *platformAccountRepository) SetPostingPaused(ctx context.Context, id int64, paused bool) error {
	return r.exec(ctx, `UPDATE platform_accounts SET posting_paused = $2, updated_at = now() WHERE id = $1`, id, paused)
}

func (r *platformAccountRepository) SetEngagementPaused(ctx context.Context, id int64, paused bool) error {
	return r.exec(ctx, `UPDATE platform_accounts SET engagement_paused = $2, updated_at = now() WHERE id = $1`, id, paused)
}

func (r *platformAccountRepository) UpdateAnalytics(ctx context.Context, id int64, followers, following, media int, syncedAt time.Time) error {
	query := `
		UPDATE platform_accounts
		SET followers_count = $2, following_count = $3, media_count = $4, last_synced_at = $5, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, followers, following, media, syncedAt)
}

func (r *platformAccountRepository) exec(ctx context.Context, query string, id int64, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type EngagementRepository interface {
	Create(ctx context.Context, e *models.Engagement) (int64, error)
	// Settled reports whether the account is done with kind on target: it
	// succeeded, failed permanently, or failed at least maxFailures times.
	// maxFailures <= 0 disables the failure count.
	Settled(ctx context.Context, accountID int64, kind models.ActionKind, targetID string, maxFailures int) (bool, error)
	ListByPersona(ctx context.Context, personaID int64, limit int) ([]*models.Engagement, error)
}

type engagementRepository struct {
	db *sqlx.DB
}

func NewEngagementRepository(db *sqlx.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) Create(ctx context.Context, e *models.Engagement) (int64, error) {
	query := `
		INSERT INTO engagements (
			persona_id, account_id, platform, action_kind, target_id, target_user_id, target_url,
			comment_text, success, error_message, error_kind, relevance_score, hashtag
		)
		VALUES (
			:persona_id, :account_id, :platform, :action_kind, :target_id, :target_user_id, :target_url,
			:comment_text, :success, :error_message, :error_kind, :relevance_score, :hashtag
		)
		RETURNING id
	`

	rows, err := r.db.NamedQueryContext(ctx, query, e)
	if err != nil {
		return 0, fmt.Errorf("inserting engagement: %w", err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, rows.Err()
}

func (r *engagementRepository) Settled(ctx context.Context, accountID int64, kind models.ActionKind, targetID string, maxFailures int) (bool, error) {
	query := `
		SELECT
			COALESCE(bool_or(success OR error_kind = $4), FALSE)
			OR ($5 > 0 AND COUNT(*) FILTER (WHERE NOT success) >= $5)
		FROM engagements
		WHERE account_id = $1 AND action_kind = $2 AND target_id = $3
	`

	var settled bool
	err := r.db.GetContext(ctx, &settled, query, accountID, kind, targetID, models.EngagementErrorPermanent, maxFailures)
	return settled, err
}

func (r *engagementRepository) ListByPersona(ctx context.Context, personaID int64, limit int) ([]*models.Engagement, error) {
	var engagements []*models.Engagement
	err := r.db.SelectContext(ctx, &engagements,
		`SELECT * FROM engagements WHERE persona_id = $1 ORDER BY id DESC LIMIT $2`, personaID, limit)
	if err != nil {
		return nil, err
	}
	return engagements, nil
}

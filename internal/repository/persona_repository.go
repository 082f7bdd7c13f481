package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type PersonaRepository interface {
	Create(ctx context.Context, p *models.Persona) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Persona, error)
	ListActive(ctx context.Context) ([]*models.Persona, error)
	// Delete removes the persona and everything it owns.
	Delete(ctx context.Context, id int64) error
}

type personaRepository struct {
	db *sqlx.DB
}

func NewPersonaRepository(db *sqlx.DB) PersonaRepository {
	return &personaRepository{db: db}
}

func (r *personaRepository) Create(ctx context.Context, p *models.Persona) (int64, error) {
	query := `
		INSERT INTO personas (
			name, bio, niches, topics, hashtags, is_active,
			max_posts_per_day, max_likes_per_day, max_comments_per_day, max_follows_per_day,
			max_video_posts_per_day, max_stories_per_day, max_reels_per_day, max_nsfw_posts_per_day,
			last_limit_reset
		)
		VALUES (
			:name, :bio, :niches, :topics, :hashtags, :is_active,
			:max_posts_per_day, :max_likes_per_day, :max_comments_per_day, :max_follows_per_day,
			:max_video_posts_per_day, :max_stories_per_day, :max_reels_per_day, :max_nsfw_posts_per_day,
			:last_limit_reset
		)
		RETURNING id
	`

	rows, err := r.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return 0, fmt.Errorf("inserting persona: %w", err)
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

func (r *personaRepository) GetByID(ctx context.Context, id int64) (*models.Persona, error) {
	var p models.Persona
	err := r.db.GetContext(ctx, &p, `SELECT * FROM personas WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *personaRepository) ListActive(ctx context.Context) ([]*models.Persona, error) {
	var personas []*models.Persona
	err := r.db.SelectContext(ctx, &personas, `SELECT * FROM personas WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return personas, nil
}

func (r *personaRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first; foreign keys carry no ON DELETE CASCADE.
	statements := []string{
		`DELETE FROM direct_messages WHERE conversation_id IN (SELECT id FROM conversations WHERE persona_id = $1)`,
		`DELETE FROM conversations WHERE persona_id = $1`,
		`DELETE FROM engagements WHERE persona_id = $1`,
		`DELETE FROM content_deliveries WHERE content_id IN (SELECT id FROM contents WHERE persona_id = $1)`,
		`DELETE FROM contents WHERE persona_id = $1`,
		`DELETE FROM platform_accounts WHERE persona_id = $1`,
		`DELETE FROM personas WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("deleting persona %d: %w", id, err)
		}
	}

	return tx.Commit()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	GetByThread(ctx context.Context, accountID int64, threadID string) (*models.Conversation, error)
	UpdateStatusIf(ctx context.Context, id int64, from, to models.ConversationStatus) (bool, error)
	SetReview(ctx context.Context, id int64, required bool, reason string) error
	TouchMessage(ctx context.Context, id int64, at time.Time) error
	TouchResponse(ctx context.Context, id int64, at time.Time) error
	// ListAwaitingReply returns ACTIVE, unflagged conversations of the account
	// holding at least one inbound message that still needs a reply.
	ListAwaitingReply(ctx context.Context, accountID int64, retryCeiling int) ([]*models.Conversation, error)

	AppendMessage(ctx context.Context, m *models.DirectMessage) (int64, error)
	// UpdateMessageIf writes m conditioned on the stored status still being expected.
	UpdateMessageIf(ctx context.Context, m *models.DirectMessage, expected models.MessageStatus) (bool, error)
	// ListReplyable returns inbound messages pending a response, including
	// failed ones below the retry ceiling, oldest first.
	ListReplyable(ctx context.Context, conversationID int64, retryCeiling int) ([]*models.DirectMessage, error)
	// ListMessages returns the most recent messages, oldest first.
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]*models.DirectMessage, error)
}

type conversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, c *models.Conversation) (int64, error) {
	query := `
		INSERT INTO conversations (
			persona_id, account_id, platform, external_thread_id, participant_id, participant_handle,
			status, requires_human_review, review_reason, last_message_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		c.PersonaID,
		c.AccountID,
		c.Platform,
		c.ExternalThreadID,
		c.ParticipantID,
		c.ParticipantHandle,
		c.Status,
		c.RequiresHumanReview,
		c.ReviewReason,
		c.LastMessageAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("inserting conversation: %w", err)
	}
	return id, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.get(ctx, `SELECT * FROM conversations WHERE id = $1`, id)
}

func (r *conversationRepository) GetByThread(ctx context.Context, accountID int64, threadID string) (*models.Conversation, error) {
	return r.get(ctx, `SELECT * FROM conversations WHERE account_id = $1 AND external_thread_id = $2`, accountID, threadID)
}

func (r *conversationRepository) get(ctx context.Context, query string, args ...any) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepository) UpdateStatusIf(ctx context.Context, id int64, from, to models.ConversationStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *conversationRepository) SetReview(ctx context.Context, id int64, required bool, reason string) error {
	return r.exec(ctx,
		`UPDATE conversations SET requires_human_review = $2, review_reason = $3, updated_at = now() WHERE id = $1`,
		id, required, reason)
}

func (r *conversationRepository) TouchMessage(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE conversations SET last_message_at = $2, updated_at = now() WHERE id = $1`, id, at)
}

func (r *conversationRepository) TouchResponse(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE conversations SET last_response_at = $2, updated_at = now() WHERE id = $1`, id, at)
}

func (r *conversationRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *conversationRepository) ListAwaitingReply(ctx context.Context, accountID int64, retryCeiling int) ([]*models.Conversation, error) {
	query := `
		SELECT c.* FROM conversations c
		WHERE c.account_id = $1
		AND c.status = $2
		AND c.requires_human_review = FALSE
		AND EXISTS (
			SELECT 1 FROM direct_messages m
			WHERE m.conversation_id = c.id
			AND m.direction = $3
			AND (m.status = $4 OR (m.status = $5 AND m.retry_count < $6))
		)
		ORDER BY c.last_message_at NULLS LAST, c.id
	`

	var conversations []*models.Conversation
	err := r.db.SelectContext(ctx, &conversations, query,
		accountID,
		models.ConversationActive,
		models.DirectionInbound,
		models.MessagePendingResponse,
		models.MessageFailed,
		retryCeiling,
	)
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *conversationRepository) AppendMessage(ctx context.Context, m *models.DirectMessage) (int64, error) {
	query := `
		INSERT INTO direct_messages (conversation_id, direction, body, status, external_message_id, responded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		m.ConversationID, m.Direction, m.Body, m.Status, m.ExternalMessageID, m.RespondedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting message: %w", err)
	}
	return id, nil
}

func (r *conversationRepository) UpdateMessageIf(ctx context.Context, m *models.DirectMessage, expected models.MessageStatus) (bool, error) {
	query := `
		UPDATE direct_messages
		SET status = $3, retry_count = $4, error_message = $5, responded_at = $6
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		m.ID, expected, m.Status, m.RetryCount, m.ErrorMessage, m.RespondedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *conversationRepository) ListReplyable(ctx context.Context, conversationID int64, retryCeiling int) ([]*models.DirectMessage, error) {
	query := `
		SELECT * FROM direct_messages
		WHERE conversation_id = $1
		AND direction = $2
		AND (status = $3 OR (status = $4 AND retry_count < $5))
		ORDER BY id
	`

	var messages []*models.DirectMessage
	err := r.db.SelectContext(ctx, &messages, query,
		conversationID,
		models.DirectionInbound,
		models.MessagePendingResponse,
		models.MessageFailed,
		retryCeiling,
	)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID int64, limit int) ([]*models.DirectMessage, error) {
	query := `
		SELECT * FROM (
			SELECT * FROM direct_messages WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2
		) recent
		ORDER BY id
	`

	var messages []*models.DirectMessage
	if err := r.db.SelectContext(ctx, &messages, query, conversationID, limit); err != nil {
		return nil, err
	}
	return messages, nil
}

package memory

import (
	"context"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type conversationRepo struct{ db *DB }

func (r *conversationRepo) Create(_ context.Context, c *models.Conversation) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.conversations {
		if existing.AccountID == c.AccountID && existing.ExternalThreadID == c.ExternalThreadID {
			return 0, repository.ErrDuplicate
		}
	}

	stored := cloneConversation(c)
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.db.conversations[stored.ID] = stored
	return stored.ID, nil
}

func (r *conversationRepo) GetByID(_ context.Context, id int64) (*models.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.conversations[id]
	if !ok {
		return nil, nil
	}
	return cloneConversation(c), nil
}

func (r *conversationRepo) GetByThread(_ context.Context, accountID int64, threadID string) (*models.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, c := range r.db.conversations {
		if c.AccountID == accountID && c.ExternalThreadID == threadID {
			return cloneConversation(c), nil
		}
	}
	return nil, nil
}

func (r *conversationRepo) UpdateStatusIf(_ context.Context, id int64, from, to models.ConversationStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.conversations[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *conversationRepo) update(id int64, fn func(*models.Conversation)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(c)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *conversationRepo) SetReview(_ context.Context, id int64, required bool, reason string) error {
	return r.update(id, func(c *models.Conversation) {
		c.RequiresHumanReview = required
		c.ReviewReason = reason
	})
}

func (r *conversationRepo) TouchMessage(_ context.Context, id int64, at time.Time) error {
	return r.update(id, func(c *models.Conversation) { c.LastMessageAt = &at })
}

func (r *conversationRepo) TouchResponse(_ context.Context, id int64, at time.Time) error {
	return r.update(id, func(c *models.Conversation) { c.LastResponseAt = &at })
}

func replyable(m *models.DirectMessage, retryCeiling int) bool {
	if m.Direction != models.DirectionInbound {
		return false
	}
	return m.Status == models.MessagePendingResponse ||
		(m.Status == models.MessageFailed && m.RetryCount < retryCeiling)
}

func (r *conversationRepo) ListAwaitingReply(_ context.Context, accountID int64, retryCeiling int) ([]*models.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	waiting := make(map[int64]bool)
	for _, m := range r.db.messages {
		if replyable(m, retryCeiling) {
			waiting[m.ConversationID] = true
		}
	}

	var out []*models.Conversation
	for _, c := range r.db.conversations {
		if c.AccountID != accountID || c.Status != models.ConversationActive || c.RequiresHumanReview {
			continue
		}
		if waiting[c.ID] {
			out = append(out, cloneConversation(c))
		}
	}
	sortByID(out, func(c *models.Conversation) int64 { return c.ID })
	return out, nil
}

func (r *conversationRepo) AppendMessage(_ context.Context, m *models.DirectMessage) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.conversations[m.ConversationID]; !ok {
		return 0, repository.ErrNotFound
	}
	stored := cloneMessage(m)
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	r.db.messages[stored.ID] = stored
	return stored.ID, nil
}

func (r *conversationRepo) UpdateMessageIf(_ context.Context, m *models.DirectMessage, expected models.MessageStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.messages[m.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = m.Status
	stored.RetryCount = m.RetryCount
	stored.ErrorMessage = m.ErrorMessage
	stored.RespondedAt = cloneTime(m.RespondedAt)
	return true, nil
}

func (r *conversationRepo) ListReplyable(_ context.Context, conversationID int64, retryCeiling int) ([]*models.DirectMessage, error) {
	return r.listMessages(conversationID, func(m *models.DirectMessage) bool {
		return replyable(m, retryCeiling)
	}), nil
}

func (r *conversationRepo) ListMessages(_ context.Context, conversationID int64, limit int) ([]*models.DirectMessage, error) {
	all := r.listMessages(conversationID, func(*models.DirectMessage) bool { return true })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *conversationRepo) listMessages(conversationID int64, keep func(*models.DirectMessage) bool) []*models.DirectMessage {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.DirectMessage
	for _, m := range r.db.messages {
		if m.ConversationID == conversationID && keep(m) {
			out = append(out, cloneMessage(m))
		}
	}
	sortByID(out, func(m *models.DirectMessage) int64 { return m.ID })
	return out
}

// Package conversation owns direct message threads: ingestion,
// classification, human review and automated replies.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/metrics"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

var ErrReplyNotAllowed = apperr.StateConflict("conversation does not accept automated replies")

var transitions = map[models.ConversationStatus][]models.ConversationStatus{
	models.ConversationActive: {models.ConversationPaused, models.ConversationClosed, models.ConversationBlocked},
	models.ConversationPaused: {models.ConversationActive, models.ConversationClosed, models.ConversationBlocked},
}

func CanTransition(from, to models.ConversationStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Inbound is a direct message received on an account.
type Inbound struct {
	Account           *models.PlatformAccount
	ThreadID          string
	ParticipantID     string
	ParticipantHandle string
	ExternalMessageID string
	Body              string
	SentAt            time.Time
}

type Lifecycle struct {
	repo         repository.ConversationRepository
	classifier   Classifier
	clock        clock.Clock
	retryCeiling int
	logger       *slog.Logger
}

func NewLifecycle(repo repository.ConversationRepository, classifier Classifier, clk clock.Clock, retryCeiling int, log *slog.Logger) *Lifecycle {
	return &Lifecycle{
		repo:         repo,
		classifier:   classifier,
		clock:        clk,
		retryCeiling: retryCeiling,
		logger:       logger.OrDiscard(log).With("component", "conversation_lifecycle"),
	}
}

// ReceiveInbound stores the message as RECEIVED, opening the conversation on
// first contact, then classifies it.
func (l *Lifecycle) ReceiveInbound(ctx context.Context, in Inbound) (*models.Conversation, *models.DirectMessage, error) {
	conv, err := l.openConversation(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	at := in.SentAt
	if at.IsZero() {
		at = l.clock.Now()
	}
	msg := &models.DirectMessage{
		ConversationID:    conv.ID,
		Direction:         models.DirectionInbound,
		Body:              in.Body,
		Status:            models.MessageReceived,
		ExternalMessageID: in.ExternalMessageID,
	}
	msg.ID, err = l.repo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, nil, fmt.Errorf("appending message to conversation %d: %w", conv.ID, err)
	}
	if err := l.repo.TouchMessage(ctx, conv.ID, at); err != nil {
		return nil, nil, fmt.Errorf("touching conversation %d: %w", conv.ID, err)
	}

	verdict := l.classify(ctx, conv, in.Body)
	msg.Status = verdict.Status
	if _, err := l.repo.UpdateMessageIf(ctx, msg, models.MessageReceived); err != nil {
		return nil, nil, fmt.Errorf("classifying message %d: %w", msg.ID, err)
	}
	if verdict.NeedsReview && !conv.RequiresHumanReview {
		if err := l.FlagReview(ctx, conv.ID, verdict.ReviewReason); err != nil {
			return nil, nil, err
		}
		conv.RequiresHumanReview = true
		conv.ReviewReason = verdict.ReviewReason
	}

	metrics.InboundMessages.WithLabelValues(string(conv.Platform), string(msg.Status)).Inc()
	l.logger.InfoContext(ctx, "inbound message stored",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"status", msg.Status,
		"review", conv.RequiresHumanReview,
	)
	return conv, msg, nil
}

func (l *Lifecycle) openConversation(ctx context.Context, in Inbound) (*models.Conversation, error) {
	conv, err := l.repo.GetByThread(ctx, in.Account.ID, in.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", in.ThreadID, err)
	}
	if conv != nil {
		return conv, nil
	}

	conv = &models.Conversation{
		PersonaID:         in.Account.PersonaID,
		AccountID:         in.Account.ID,
		Platform:          in.Account.Platform,
		ExternalThreadID:  in.ThreadID,
		ParticipantID:     in.ParticipantID,
		ParticipantHandle: in.ParticipantHandle,
		Status:            models.ConversationActive,
	}
	conv.ID, err = l.repo.Create(ctx, conv)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent first message on the same thread.
		return l.repo.GetByThread(ctx, in.Account.ID, in.ThreadID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating conversation for thread %s: %w", in.ThreadID, err)
	}
	return conv, nil
}

// classify never fails: messages on closed threads are ignored, and a broken
// classifier sends the thread to a human rather than dropping the message.
func (l *Lifecycle) classify(ctx context.Context, conv *models.Conversation, body string) Verdict {
	if conv.Status == models.ConversationClosed || conv.Status == models.ConversationBlocked {
		return Verdict{Status: models.MessageIgnored}
	}
	v, err := l.classifier.Classify(ctx, conv, body)
	if err != nil {
		l.logger.WarnContext(ctx, "classifier failed", "conversation_id", conv.ID, "error", err)
		return Verdict{Status: models.MessagePendingResponse, NeedsReview: true, ReviewReason: "classification failed"}
	}
	return v
}

// CanReply reports whether automated replies may be sent on conv.
func CanReply(conv *models.Conversation) bool {
	return conv.Status == models.ConversationActive && !conv.RequiresHumanReview
}

// AwaitingReply lists conversations of the account with messages to answer.
func (l *Lifecycle) AwaitingReply(ctx context.Context, accountID int64) ([]*models.Conversation, error) {
	return l.repo.ListAwaitingReply(ctx, accountID, l.retryCeiling)
}

// Reply is one claimed automated answer to a conversation's open messages.
type Reply struct {
	Conversation *models.Conversation
	Messages     []*models.DirectMessage
	History      []*models.DirectMessage
}

// BeginReply re-reads the conversation so that a review flag or status change
// made since it was listed is honoured.
func (l *Lifecycle) BeginReply(ctx context.Context, conversationID int64, historyLimit int) (*Reply, error) {
	conv, err := l.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, repository.ErrNotFound
	}
	if !CanReply(conv) {
		return nil, ErrReplyNotAllowed
	}

	msgs, err := l.repo.ListReplyable(ctx, conv.ID, l.retryCeiling)
	if err != nil {
		return nil, fmt.Errorf("listing replyable messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrReplyNotAllowed
	}
	history, err := l.repo.ListMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return &Reply{Conversation: conv, Messages: msgs, History: history}, nil
}

// RecordSent marks every answered message RESPONDED and appends the outbound
// one. The reply is recorded even when some message changed status since
// BeginReply; those are left alone and reported as a state conflict.
func (l *Lifecycle) RecordSent(ctx context.Context, r *Reply, body, externalID string) error {
	now := l.clock.Now()
	var stale []int64
	for _, m := range r.Messages {
		prev := m.Status
		m.Status = models.MessageResponded
		m.RespondedAt = &now
		m.ErrorMessage = ""
		ok, err := l.repo.UpdateMessageIf(ctx, m, prev)
		if err != nil {
			return fmt.Errorf("marking message %d responded: %w", m.ID, err)
		}
		if !ok {
			m.Status = prev
			stale = append(stale, m.ID)
			l.logger.WarnContext(ctx, "message changed while reply was sent", "conversation_id", r.Conversation.ID, "message_id", m.ID)
		}
	}

	out := &models.DirectMessage{
		ConversationID:    r.Conversation.ID,
		Direction:         models.DirectionOutbound,
		Body:              body,
		Status:            models.MessageResponded,
		ExternalMessageID: externalID,
		RespondedAt:       &now,
	}
	if _, err := l.repo.AppendMessage(ctx, out); err != nil {
		return fmt.Errorf("appending reply: %w", err)
	}
	if err := l.repo.TouchResponse(ctx, r.Conversation.ID, now); err != nil {
		return err
	}
	if len(stale) > 0 {
		return apperr.StateConflict(fmt.Sprintf("messages %v of conversation %d changed while the reply was sent", stale, r.Conversation.ID))
	}
	return nil
}

// RecordFailed marks the messages FAILED; they are retried until the ceiling.
func (l *Lifecycle) RecordFailed(ctx context.Context, r *Reply, cause error) error {
	var errs []error
	for _, m := range r.Messages {
		prev := m.Status
		m.Status = models.MessageFailed
		m.RetryCount++
		m.ErrorMessage = cause.Error()
		if _, err := l.repo.UpdateMessageIf(ctx, m, prev); err != nil {
			errs = append(errs, fmt.Errorf("marking message %d failed: %w", m.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (l *Lifecycle) FlagReview(ctx context.Context, id int64, reason string) error {
	if err := l.repo.SetReview(ctx, id, true, reason); err != nil {
		return fmt.Errorf("flagging conversation %d: %w", id, err)
	}
	l.logger.InfoContext(ctx, "conversation flagged for review", "conversation_id", id, "reason", reason)
	return nil
}

func (l *Lifecycle) ClearReview(ctx context.Context, id int64) error {
	if err := l.repo.SetReview(ctx, id, false, ""); err != nil {
		return fmt.Errorf("clearing review on conversation %d: %w", id, err)
	}
	return nil
}

// SetStatus applies a status change if it is allowed from the stored status.
func (l *Lifecycle) SetStatus(ctx context.Context, id int64, to models.ConversationStatus) error {
	conv, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return repository.ErrNotFound
	}
	if !CanTransition(conv.Status, to) {
		return apperr.Validation(fmt.Sprintf("conversation cannot move from %s to %s", conv.Status, to))
	}
	ok, err := l.repo.UpdateStatusIf(ctx, id, conv.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.StateConflict(fmt.Sprintf("conversation %d changed concurrently", id))
	}
	return nil
}

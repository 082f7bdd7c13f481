package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

// HandleInboundMessageTask stores a received direct message. Payloads that
// can never succeed are archived instead of retried.
func (q *Queue) HandleInboundMessageTask(ctx context.Context, task *asynq.Task) error {
	var msg transfer.InboundMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("decoding inbound message: %v: %w", err, asynq.SkipRetry)
	}
	return q.ReceiveInbound(ctx, msg)
}

func (q *Queue) ReceiveInbound(ctx context.Context, msg transfer.InboundMessage) error {
	acc, err := q.accounts.GetByExternalID(ctx, models.Platform(msg.Platform), msg.AccountExternalID)
	if err != nil {
		return fmt.Errorf("looking up account %s/%s: %w", msg.Platform, msg.AccountExternalID, err)
	}
	if acc == nil {
		q.logger.WarnContext(ctx, "inbound message for unknown account", "platform", msg.Platform, "account_external_id", msg.AccountExternalID)
		return fmt.Errorf("no %s account %q: %w", msg.Platform, msg.AccountExternalID, asynq.SkipRetry)
	}

	in := conversation.Inbound{
		Account:           acc,
		ThreadID:          msg.ThreadID,
		ParticipantID:     msg.ParticipantID,
		ParticipantHandle: msg.ParticipantHandle,
		ExternalMessageID: msg.MessageID,
		Body:              msg.Body,
	}
	if msg.SentAt > 0 {
		in.SentAt = time.Unix(msg.SentAt, 0).UTC()
	}

	if _, _, err := q.convs.ReceiveInbound(ctx, in); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

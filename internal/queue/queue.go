package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

// Enqueuer is the part of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueInbound submits a received direct message for ingestion. Webhook
// redeliveries of a message with a known id are dropped.
func EnqueueInbound(ctx context.Context, client Enqueuer, msg transfer.InboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.MaxRetry(5)}
	if msg.MessageID != "" {
		opts = append(opts, asynq.TaskID(fmt.Sprintf("inbound:%s:%s:%s", msg.Platform, msg.AccountExternalID, msg.MessageID)))
	}

	_, err = client.EnqueueContext(ctx, asynq.NewTask(TaskTypeInboundMessage, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

package queue

import (
	"log/slog"

	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type Queue struct {
	accounts repository.PlatformAccountRepository
	convs    *conversation.Lifecycle
	logger   *slog.Logger
}

func NewQueue(accounts repository.PlatformAccountRepository, convs *conversation.Lifecycle, log *slog.Logger) *Queue {
	return &Queue{
		accounts: accounts,
		convs:    convs,
		logger:   logger.OrDiscard(log).With("component", "queue"),
	}
}

const TaskTypeInboundMessage = "conversation:inbound"

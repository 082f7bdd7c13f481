package scheduler

import (
	"context"
	"errors"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

func (s *Scheduler) converse(ctx context.Context, u *unit, acc *models.PlatformAccount) {
	convs, err := s.convs.AwaitingReply(ctx, acc.ID)
	if err != nil {
		u.log.ErrorContext(ctx, "failed to list conversations", "account_id", acc.ID, "error", err)
		return
	}
	if len(convs) == 0 {
		return
	}

	adapter := s.resolve(ctx, u, acc)
	if adapter == nil {
		return
	}
	messenger, ok := platform.AsMessenger(adapter)
	if !ok {
		u.log.DebugContext(ctx, "platform cannot send messages", "account_id", acc.ID, "platform", acc.Platform)
		return
	}

	for _, conv := range convs {
		if ctx.Err() != nil || !u.active(acc) {
			return
		}
		s.replyTo(ctx, u, acc, messenger, conv.ID)
	}
}

func (s *Scheduler) replyTo(ctx context.Context, u *unit, acc *models.PlatformAccount, messenger platform.Messenger, conversationID int64) {
	log := u.log.With("account_id", acc.ID, "conversation_id", conversationID)

	reply, err := s.convs.BeginReply(ctx, conversationID, s.cfg.HistoryLimit)
	if err != nil {
		if errors.Is(err, conversation.ErrReplyNotAllowed) {
			log.DebugContext(ctx, "conversation no longer open for replies")
			return
		}
		log.ErrorContext(ctx, "failed to load conversation", "error", err)
		return
	}

	text, err := s.responder.ReplyText(ctx, u.persona, reply.Conversation, reply.History)
	if err != nil {
		log.WarnContext(ctx, "no reply text, will retry next tick", "error", err)
		return
	}
	if err := s.pacer.wait(ctx, u.persona.ID); err != nil {
		return
	}

	conv := reply.Conversation
	externalID, err := call(ctx, s.cfg.AdapterTimeout, acc.Platform, "reply", func(ctx context.Context) (string, error) {
		return messenger.SendMessage(ctx, conv.ExternalThreadID, conv.ParticipantID, text)
	})
	s.pacer.mark(u.persona.ID)
	s.settle(ctx, u, acc, "reply", err)

	store := context.WithoutCancel(ctx)
	if err != nil {
		if recErr := s.convs.RecordFailed(store, reply, err); recErr != nil {
			log.ErrorContext(ctx, "failed to record failed reply", "error", recErr)
		}
		return
	}
	if err := s.convs.RecordSent(store, reply, text, externalID); err != nil {
		if !errors.Is(err, apperr.ErrStateConflict) {
			log.ErrorContext(ctx, "failed to record reply", "error", err)
			return
		}
		log.WarnContext(ctx, "reply recorded with conflicts", "error", err)
	}
	u.tally.replied.Add(1)
}

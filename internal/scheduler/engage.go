package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/maheshrc27/persona-scheduler/internal/engagement"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

func (s *Scheduler) engage(ctx context.Context, u *unit, acc *models.PlatformAccount) {
	remaining, err := s.quota.Remaining(ctx, u.persona.ID, acc.ID)
	if err != nil {
		u.log.ErrorContext(ctx, "failed to read remaining quota", "account_id", acc.ID, "error", err)
		return
	}
	open := false
	for _, kind := range models.EngagementKinds {
		if s.unsupported.has(acc.ID, kind) {
			delete(remaining, kind)
			continue
		}
		if remaining[kind] > 0 {
			open = true
		}
	}
	if !open {
		return
	}

	adapter := s.resolve(ctx, u, acc)
	if adapter == nil {
		return
	}

	actions, err := call(ctx, s.cfg.AdapterTimeout, acc.Platform, "discover", func(ctx context.Context) ([]engagement.Action, error) {
		return s.planner.Plan(ctx, u.persona, acc, adapter, remaining, s.cfg.MaxActionsPerTick)
	})
	if err != nil {
		s.settle(ctx, u, acc, "discover", err)
		return
	}

	for _, a := range actions {
		if ctx.Err() != nil || !u.active(acc) {
			return
		}
		if s.unsupported.has(acc.ID, a.Kind) {
			continue
		}
		s.engageOne(ctx, u, acc, adapter, a)
	}
}

func (s *Scheduler) engageOne(ctx context.Context, u *unit, acc *models.PlatformAccount, adapter platform.Adapter, a engagement.Action) {
	var text string
	if a.Kind == models.ActionComment {
		var err error
		text, err = s.responder.CommentText(ctx, u.persona, a.Target)
		if err != nil {
			u.log.WarnContext(ctx, "no comment text, skipping", "account_id", acc.ID, "target_id", a.Target.ID, "error", err)
			return
		}
	}

	r, ok := s.reserve(ctx, u, acc, a.Kind)
	if !ok {
		return
	}
	if err := s.pacer.wait(ctx, u.persona.ID); err != nil {
		s.finishReservation(ctx, u, r, false)
		return
	}

	op := string(a.Kind)
	err := callErr(ctx, s.cfg.AdapterTimeout, acc.Platform, op, func(ctx context.Context) error {
		switch a.Kind {
		case models.ActionLike:
			return adapter.Like(ctx, a.Target)
		case models.ActionComment:
			return adapter.Comment(ctx, a.Target, text)
		case models.ActionFollow:
			return adapter.Follow(ctx, a.Target)
		default:
			return fmt.Errorf("unknown engagement kind %q", a.Kind)
		}
	})
	s.pacer.mark(u.persona.ID)
	s.finishReservation(ctx, u, r, err == nil)

	row := &models.Engagement{
		PersonaID:      u.persona.ID,
		AccountID:      acc.ID,
		Platform:       acc.Platform,
		Kind:           a.Kind,
		TargetID:       engagement.TargetKey(a.Kind, a.Target),
		TargetUserID:   a.Target.UserID,
		TargetURL:      a.Target.URL,
		CommentText:    text,
		Success:        err == nil,
		RelevanceScore: a.Score,
		Hashtag:        a.Target.Hashtag,
	}
	if err != nil {
		row.ErrorMessage = err.Error()
		row.ErrorKind = errorKind(err)
		if errors.Is(err, platform.ErrUnsupported) {
			s.unsupported.add(acc.ID, a.Kind)
			u.log.InfoContext(ctx, "platform does not offer action, dropping it", "account_id", acc.ID, "kind", a.Kind)
		}
	}
	if _, recErr := s.repos.Engagements.Create(context.WithoutCancel(ctx), row); recErr != nil {
		u.log.ErrorContext(ctx, "failed to record engagement", "account_id", acc.ID, "kind", a.Kind, "error", recErr)
	}

	s.settle(ctx, u, acc, op, err)
	if err == nil {
		u.tally.engaged.Add(1)
	}
}

func errorKind(err error) string {
	kind, ok := platform.KindOf(err)
	if !ok {
		return models.EngagementErrorInternal
	}
	switch kind {
	case platform.KindPermanent:
		return models.EngagementErrorPermanent
	case platform.KindAuth:
		return models.EngagementErrorAuth
	default:
		return models.EngagementErrorTransient
	}
}

// kindSet remembers engagement kinds an account's platform turned down as
// unsupported.
type kindSet struct {
	mu   sync.Mutex
	seen map[int64]map[models.ActionKind]bool
}

func (k *kindSet) add(accountID int64, kind models.ActionKind) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.seen == nil {
		k.seen = make(map[int64]map[models.ActionKind]bool)
	}
	if k.seen[accountID] == nil {
		k.seen[accountID] = make(map[models.ActionKind]bool)
	}
	k.seen[accountID][kind] = true
}

func (k *kindSet) has(accountID int64, kind models.ActionKind) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.seen[accountID][kind]
}

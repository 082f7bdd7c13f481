package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/quota"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type quotaStore struct{ db *DB }

// counters returns pointers to the tracked counter fields and the reset
// timestamp of the scope. The caller must hold the lock.
func (s *quotaStore) counters(scope quota.Scope) (map[models.ActionKind]*int, *time.Time, error) {
	switch scope.Type {
	case quota.ScopePersona:
		p, ok := s.db.personas[scope.ID]
		if !ok {
			return nil, nil, repository.ErrNotFound
		}
		return map[models.ActionKind]*int{
			models.ActionPost:      &p.PostsToday,
			models.ActionLike:      &p.LikesToday,
			models.ActionComment:   &p.CommentsToday,
			models.ActionFollow:    &p.FollowsToday,
			models.ActionVideoPost: &p.VideoPostsToday,
			models.ActionStory:     &p.StoriesToday,
			models.ActionReel:      &p.ReelsToday,
			models.ActionNSFWPost:  &p.NSFWPostsToday,
		}, &p.LastLimitReset, nil
	case quota.ScopeAccount:
		a, ok := s.db.accounts[scope.ID]
		if !ok {
			return nil, nil, repository.ErrNotFound
		}
		return map[models.ActionKind]*int{
			models.ActionPost:      &a.PostsToday,
			models.ActionVideoPost: &a.VideoPostsToday,
			models.ActionStory:     &a.StoriesToday,
			models.ActionReel:      &a.ReelsToday,
		}, &a.LastLimitReset, nil
	default:
		return nil, nil, fmt.Errorf("unknown quota scope %q", scope.Type)
	}
}

func (s *quotaStore) Snapshot(_ context.Context, scope quota.Scope) (quota.Snapshot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	switch scope.Type {
	case quota.ScopePersona:
		p, ok := s.db.personas[scope.ID]
		if !ok {
			return quota.Snapshot{}, repository.ErrNotFound
		}
		return quota.PersonaSnapshot(clonePersona(p)), nil
	case quota.ScopeAccount:
		a, ok := s.db.accounts[scope.ID]
		if !ok {
			return quota.Snapshot{}, repository.ErrNotFound
		}
		return quota.AccountSnapshot(cloneAccount(a)), nil
	default:
		return quota.Snapshot{}, fmt.Errorf("unknown quota scope %q", scope.Type)
	}
}

func (s *quotaStore) ResetIfStale(_ context.Context, scope quota.Scope, dayStart, now time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	counters, lastReset, err := s.counters(scope)
	if err != nil {
		return false, err
	}
	if !lastReset.Before(dayStart) {
		return false, nil
	}
	for _, c := range counters {
		*c = 0
	}
	*lastReset = now
	return true, nil
}

func (s *quotaStore) TryIncrement(_ context.Context, scope quota.Scope, kind models.ActionKind, limit int) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	counters, _, err := s.counters(scope)
	if err != nil {
		return false, err
	}
	c, ok := counters[kind]
	if !ok {
		return false, fmt.Errorf("%s does not track %s", scope.Type, kind)
	}
	if *c >= limit {
		return false, nil
	}
	*c++
	return true, nil
}

func (s *quotaStore) Decrement(_ context.Context, scope quota.Scope, kind models.ActionKind) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	counters, _, err := s.counters(scope)
	if err != nil {
		return err
	}
	c, ok := counters[kind]
	if !ok {
		return fmt.Errorf("%s does not track %s", scope.Type, kind)
	}
	if *c > 0 {
		*c--
	}
	return nil
}

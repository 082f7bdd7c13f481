package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type ScopeType string

const (
	ScopePersona ScopeType = "persona"
	ScopeAccount ScopeType = "account"
)

// Scope is the owner of a set of daily counters.
type Scope struct {
	Type ScopeType
	ID   int64
}

func PersonaScope(id int64) Scope { return Scope{Type: ScopePersona, ID: id} }
func AccountScope(id int64) Scope { return Scope{Type: ScopeAccount, ID: id} }

func (s Scope) String() string { return fmt.Sprintf("%s:%d", s.Type, s.ID) }

// Snapshot is the counter state of one scope. Kinds absent from Counts are not
// tracked at that scope and never constrain an action.
type Snapshot struct {
	Counts    map[models.ActionKind]int
	Overrides map[models.ActionKind]*int
	LastReset time.Time
}

// Store persists counters. Every mutation must be atomic with respect to
// concurrent callers on the same scope.
type Store interface {
	Snapshot(ctx context.Context, scope Scope) (Snapshot, error)
	// ResetIfStale zeroes all counters and sets last_limit_reset to now when
	// the stored reset predates dayStart. It reports whether a reset happened.
	ResetIfStale(ctx context.Context, scope Scope, dayStart, now time.Time) (bool, error)
	// TryIncrement bumps the counter only while it is below limit.
	TryIncrement(ctx context.Context, scope Scope, kind models.ActionKind, limit int) (bool, error)
	// Decrement lowers the counter, never below zero.
	Decrement(ctx context.Context, scope Scope, kind models.ActionKind) error
}

// PersonaSnapshot extracts the counters tracked on a persona row.
func PersonaSnapshot(p *models.Persona) Snapshot {
	return Snapshot{
		Counts: map[models.ActionKind]int{
			models.ActionPost:      p.PostsToday,
			models.ActionLike:      p.LikesToday,
			models.ActionComment:   p.CommentsToday,
			models.ActionFollow:    p.FollowsToday,
			models.ActionVideoPost: p.VideoPostsToday,
			models.ActionStory:     p.StoriesToday,
			models.ActionReel:      p.ReelsToday,
			models.ActionNSFWPost:  p.NSFWPostsToday,
		},
		Overrides: map[models.ActionKind]*int{
			models.ActionPost:      p.MaxPostsPerDay,
			models.ActionLike:      p.MaxLikesPerDay,
			models.ActionComment:   p.MaxCommentsPerDay,
			models.ActionFollow:    p.MaxFollowsPerDay,
			models.ActionVideoPost: p.MaxVideoPostsPerDay,
			models.ActionStory:     p.MaxStoriesPerDay,
			models.ActionReel:      p.MaxReelsPerDay,
			models.ActionNSFWPost:  p.MaxNSFWPostsPerDay,
		},
		LastReset: p.LastLimitReset,
	}
}

// AccountSnapshot extracts the counters tracked on a platform account row.
func AccountSnapshot(a *models.PlatformAccount) Snapshot {
	return Snapshot{
		Counts: map[models.ActionKind]int{
			models.ActionPost:      a.PostsToday,
			models.ActionVideoPost: a.VideoPostsToday,
			models.ActionStory:     a.StoriesToday,
			models.ActionReel:      a.ReelsToday,
		},
		Overrides: map[models.ActionKind]*int{
			models.ActionPost:      a.MaxPostsPerDay,
			models.ActionVideoPost: a.MaxVideoPostsPerDay,
			models.ActionStory:     a.MaxStoriesPerDay,
			models.ActionReel:      a.MaxReelsPerDay,
		},
		LastReset: a.LastLimitReset,
	}
}

package engagement_test

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/engagement"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/platform/platformtest"
	"github.com/maheshrc27/persona-scheduler/internal/repository/memory"
)

func TestPlannerFiltersPastEngagements(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	account := &models.PlatformAccount{ID: 3, PersonaID: 1, Platform: models.PlatformTwitter}

	_, err := repos.Engagements.Create(ctx, &models.Engagement{
		PersonaID: 1, AccountID: 3, Platform: models.PlatformTwitter,
		Kind: models.ActionLike, TargetID: "t1", Success: true,
	})
	require.NoError(t, err)

	fake := platformtest.New(models.PlatformTwitter)
	fake.Targets = []platform.Target{
		{ID: "t1", UserID: "u1", Text: "travel"},
		{ID: "t2", UserID: "u2", Text: "travel"},
	}

	planner := engagement.NewPlanner(engagement.HashtagSource{}, engagement.NewBalanced(0), repos.Engagements, 10, 3, nil)
	persona := &models.Persona{ID: 1, Hashtags: pq.StringArray{"travel"}}

	actions, err := planner.Plan(ctx, persona, account, fake, map[models.ActionKind]int{models.ActionLike: 5}, 5)
	require.NoError(t, err)

	require.Len(t, actions, 1)
	assert.Equal(t, "t2", actions[0].Target.ID)
	assert.Len(t, fake.CallsTo("discover"), 1)
}

func TestPlannerGivesUpOnFailedTargets(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	account := &models.PlatformAccount{ID: 3, PersonaID: 1, Platform: models.PlatformTwitter}

	fail := func(target, kind string) {
		_, err := repos.Engagements.Create(ctx, &models.Engagement{
			PersonaID: 1, AccountID: 3, Platform: models.PlatformTwitter,
			Kind: models.ActionLike, TargetID: target, ErrorKind: kind,
		})
		require.NoError(t, err)
	}
	// t1 was rejected outright, t2 ran out of retries, t3 may still be retried.
	fail("t1", models.EngagementErrorPermanent)
	for range 3 {
		fail("t2", models.EngagementErrorTransient)
	}
	fail("t3", models.EngagementErrorTransient)

	fake := platformtest.New(models.PlatformTwitter)
	fake.Targets = []platform.Target{
		{ID: "t1", UserID: "u1", Text: "travel"},
		{ID: "t2", UserID: "u2", Text: "travel"},
		{ID: "t3", UserID: "u3", Text: "travel"},
	}

	planner := engagement.NewPlanner(engagement.HashtagSource{}, engagement.NewBalanced(0), repos.Engagements, 10, 3, nil)
	persona := &models.Persona{ID: 1, Hashtags: pq.StringArray{"travel"}}

	actions, err := planner.Plan(ctx, persona, account, fake, map[models.ActionKind]int{models.ActionLike: 5}, 5)
	require.NoError(t, err)

	require.Len(t, actions, 1)
	assert.Equal(t, "t3", actions[0].Target.ID)
}

func TestPlannerDropsUnsupportedKinds(t *testing.T) {
	repos := memory.New().Repositories()
	account := &models.PlatformAccount{ID: 3, PersonaID: 1, Platform: models.PlatformInstagram}

	fake := platformtest.New(models.PlatformInstagram)
	fake.Unsupported = []models.ActionKind{models.ActionLike, models.ActionFollow}
	fake.Targets = []platform.Target{{ID: "t1", UserID: "u1", Text: "travel"}}

	planner := engagement.NewPlanner(engagement.HashtagSource{}, engagement.NewBalanced(0), repos.Engagements, 10, 3, nil)
	persona := &models.Persona{ID: 1, Hashtags: pq.StringArray{"travel"}}
	remaining := map[models.ActionKind]int{models.ActionLike: 5, models.ActionComment: 5, models.ActionFollow: 5}

	actions, err := planner.Plan(context.Background(), persona, account, fake, remaining, 6)
	require.NoError(t, err)

	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionComment, actions[0].Kind)

	// Nothing left to offer means no search at all.
	_, err = planner.Plan(context.Background(), persona, account, fake, map[models.ActionKind]int{models.ActionLike: 5}, 6)
	require.NoError(t, err)
	assert.Len(t, fake.CallsTo("discover"), 1)
}

func TestHashtagSourceWithoutDiscoverer(t *testing.T) {
	targets, err := engagement.HashtagSource{}.Candidates(context.Background(),
		&models.Persona{Hashtags: pq.StringArray{"x"}}, publishOnly{}, 10)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

type publishOnly struct{ platform.Adapter }

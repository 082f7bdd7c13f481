package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/engagement"
	"github.com/maheshrc27/persona-scheduler/internal/generator"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/platform/platformtest"
	"github.com/maheshrc27/persona-scheduler/internal/quota"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
	"github.com/maheshrc27/persona-scheduler/internal/repository/memory"
	"github.com/maheshrc27/persona-scheduler/internal/scheduler"
)

var noon = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

type harness struct {
	repos    *repository.Repositories
	clk      *clock.Fake
	registry *platform.Registry
	convs    *conversation.Lifecycle
	sched    *scheduler.Scheduler

	mu    sync.Mutex
	fakes map[int64]*platformtest.Adapter
}

func newHarness(t *testing.T, tweak ...func(*scheduler.Config)) *harness {
	t.Helper()
	h := &harness{
		repos: memory.New().Repositories(),
		clk:   clock.NewFake(noon),
		fakes: make(map[int64]*platformtest.Adapter),
	}

	h.registry = platform.NewRegistry(nil)
	factory := platformtest.Factory(h.fakes)
	for _, p := range []models.Platform{models.PlatformInstagram, models.PlatformTwitter, models.PlatformFanvue} {
		h.registry.Register(p, factory)
	}

	defaults := quota.Defaults{}
	for _, kind := range models.ActionKinds {
		defaults[kind] = 10
	}
	tracker := quota.NewTracker(h.repos.Quotas, defaults, h.clk, nil)
	h.convs = conversation.NewLifecycle(h.repos.Conversations, conversation.NewKeywordClassifier(), h.clk, 3, nil)

	cfg := scheduler.Config{
		Concurrency:       4,
		AdapterTimeout:    time.Second,
		MaxActionsPerTick: 6,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	h.sched = scheduler.New(scheduler.Deps{
		Repos:         h.repos,
		Quota:         tracker,
		Registry:      h.registry,
		Content:       content.NewLifecycle(h.repos.Contents, h.clk, 3, nil),
		Conversations: h.convs,
		Planner:       engagement.NewPlanner(engagement.HashtagSource{}, engagement.NewBalanced(0), h.repos.Engagements, 10, 3, nil),
		Responder:     generator.NewTemplates(),
		Clock:         h.clk,
	}, cfg)
	return h
}

func (h *harness) persona(t *testing.T, mutate ...func(*models.Persona)) *models.Persona {
	t.Helper()
	p := &models.Persona{Name: "mia", IsActive: true, Hashtags: pq.StringArray{"fitness"}}
	for _, fn := range mutate {
		fn(p)
	}
	id, err := h.repos.Personas.Create(context.Background(), p)
	require.NoError(t, err)
	p.ID = id
	return p
}

// account creates a connected account and the fake adapter behind it.
func (h *harness) account(t *testing.T, personaID int64, p models.Platform, mutate ...func(*models.PlatformAccount)) (*models.PlatformAccount, *platformtest.Adapter) {
	t.Helper()
	acc := &models.PlatformAccount{PersonaID: personaID, Platform: p, Handle: "mia_" + string(p), IsConnected: true}
	for _, fn := range mutate {
		fn(acc)
	}
	id, err := h.repos.Accounts.Create(context.Background(), acc)
	require.NoError(t, err)
	acc.ID = id

	fake := platformtest.New(p)
	h.mu.Lock()
	h.fakes[id] = fake
	h.mu.Unlock()
	return acc, fake
}

func (h *harness) content(t *testing.T, personaID int64, scheduledFor *time.Time, targets ...models.Platform) *models.Content {
	t.Helper()
	c := &models.Content{
		PersonaID:    personaID,
		Type:         models.ContentTypePost,
		Status:       models.ContentStatusScheduled,
		Caption:      "morning run #fitness",
		MediaURLs:    pq.StringArray{"https://cdn.example.test/run.jpg"},
		ScheduledFor: scheduledFor,
	}
	for _, p := range targets {
		c.TargetPlatforms = append(c.TargetPlatforms, string(p))
	}
	id, err := h.repos.Contents.Create(context.Background(), c)
	require.NoError(t, err)
	c.ID = id
	return c
}

func (h *harness) load(t *testing.T, id int64) *models.Content {
	t.Helper()
	c, err := h.repos.Contents.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func (h *harness) tick(t *testing.T) *scheduler.Report {
	t.Helper()
	report, err := h.sched.Tick(context.Background())
	require.NoError(t, err)
	return report
}

func (h *harness) inbound(t *testing.T, acc *models.PlatformAccount, thread, body string) *models.Conversation {
	t.Helper()
	conv, _, err := h.convs.ReceiveInbound(context.Background(), conversation.Inbound{
		Account:           acc,
		ThreadID:          thread,
		ParticipantID:     "user-" + thread,
		ParticipantHandle: "fan_" + thread,
		ExternalMessageID: "m-" + thread,
		Body:              body,
	})
	require.NoError(t, err)
	return conv
}

func targets(n int) []platform.Target {
	out := make([]platform.Target, n)
	for i := range out {
		id := string(rune('a' + i))
		out[i] = platform.Target{
			ID:       "post-" + id,
			UserID:   "user-" + id,
			Text:     "leg day #fitness",
			Hashtags: []string{"fitness"},
			Hashtag:  "fitness",
			PostedAt: noon.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestPartialFailureStillPosts(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	_, ig := h.account(t, p.ID, models.PlatformInstagram)
	_, tw := h.account(t, p.ID, models.PlatformTwitter)
	tw.PublishFunc = func(context.Context, *models.Content) (platform.PostResult, error) {
		return platform.PostResult{}, platform.Permanent(models.PlatformTwitter, "publish", errors.New("media rejected"))
	}
	c := h.content(t, p.ID, nil, models.PlatformInstagram, models.PlatformTwitter)

	report := h.tick(t)

	got := h.load(t, c.ID)
	assert.Equal(t, models.ContentStatusPosted, got.Status)
	assert.Equal(t, pq.StringArray{"instagram"}, got.PostedPlatforms)
	assert.Equal(t, pq.StringArray{"twitter"}, got.FailedPlatforms)
	assert.NotNil(t, got.PostedAt)
	assert.Len(t, ig.CallsTo("publish"), 1)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 1, report.Failed)

	// The failed delivery gave its quota slot back.
	stored, err := h.repos.Personas.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.PostsToday)
}

func TestTimeoutsExhaustRetryCeiling(t *testing.T) {
	h := newHarness(t, func(c *scheduler.Config) { c.AdapterTimeout = 20 * time.Millisecond })
	p := h.persona(t)
	_, tw := h.account(t, p.ID, models.PlatformTwitter)
	tw.PublishFunc = func(ctx context.Context, _ *models.Content) (platform.PostResult, error) {
		<-ctx.Done()
		return platform.PostResult{}, ctx.Err()
	}
	c := h.content(t, p.ID, nil, models.PlatformTwitter)

	for i := 1; i <= 2; i++ {
		h.tick(t)
		got := h.load(t, c.ID)
		assert.Equal(t, models.ContentStatusScheduled, got.Status)
		assert.Equal(t, i, got.RetryCount)
	}

	h.tick(t)
	got := h.load(t, c.ID)
	assert.Equal(t, models.ContentStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, pq.StringArray{"twitter"}, got.FailedPlatforms)

	stored, err := h.repos.Personas.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.PostsToday)

	h.tick(t)
	assert.Len(t, tw.CallsTo("publish"), 3)
}

func TestRepliesSkipConversationsUnderReview(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	acc, ig := h.account(t, p.ID, models.PlatformInstagram)

	flagged := h.inbound(t, acc, "t1", "can I paypal you for a shoutout?")
	require.True(t, flagged.RequiresHumanReview)
	normal := h.inbound(t, acc, "t2", "love your posts!")

	report := h.tick(t)

	sent := ig.CallsTo("send_message")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "fan_t2")
	assert.Equal(t, 1, report.Replied)

	msgs, err := h.repos.Conversations.ListMessages(context.Background(), normal.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageResponded, msgs[0].Status)
	assert.Equal(t, models.DirectionOutbound, msgs[1].Direction)

	msgs, err = h.repos.Conversations.ListMessages(context.Background(), flagged.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessagePendingResponse, msgs[0].Status)

	// Clearing the review lets the next tick answer it.
	require.NoError(t, h.convs.ClearReview(context.Background(), flagged.ID))
	h.tick(t)
	assert.Len(t, ig.CallsTo("send_message"), 2)
}

func TestPausedAccountsAreHonoured(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	_, ig := h.account(t, p.ID, models.PlatformInstagram, func(a *models.PlatformAccount) { a.PostingPaused = true })
	_, tw := h.account(t, p.ID, models.PlatformTwitter, func(a *models.PlatformAccount) { a.EngagementPaused = true })
	ig.Targets = targets(2)
	tw.Targets = targets(2)
	c := h.content(t, p.ID, nil, models.PlatformInstagram, models.PlatformTwitter)

	h.tick(t)

	got := h.load(t, c.ID)
	assert.Equal(t, models.ContentStatusPosted, got.Status)
	assert.Equal(t, pq.StringArray{"twitter"}, got.PostedPlatforms)
	assert.Empty(t, ig.CallsTo("publish"))
	assert.NotEmpty(t, ig.CallsTo("like"))
	assert.Empty(t, tw.CallsTo("discover"))
	assert.Empty(t, tw.CallsTo("like"))
}

func TestLikeCapHoldsAcrossTicks(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t, func(p *models.Persona) {
		p.MaxLikesPerDay = intPtr(2)
		p.MaxCommentsPerDay = intPtr(0)
		p.MaxFollowsPerDay = intPtr(0)
	})
	_, ig := h.account(t, p.ID, models.PlatformInstagram)
	ig.Targets = targets(5)

	h.tick(t)
	h.tick(t)

	assert.Len(t, ig.CallsTo("like"), 2)
	assert.Empty(t, ig.CallsTo("comment"))
	assert.Empty(t, ig.CallsTo("follow"))

	rows, err := h.repos.Engagements.ListByPersona(context.Background(), p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	stored, err := h.repos.Personas.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LikesToday)
}

func TestEngagementIsAuditedAndNotRepeated(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	acc, ig := h.account(t, p.ID, models.PlatformInstagram)
	ig.Targets = targets(1)

	report := h.tick(t)
	assert.Equal(t, 3, report.Engaged)
	assert.Len(t, ig.CallsTo("like"), 1)
	assert.Len(t, ig.CallsTo("follow"), 1)
	comments := ig.CallsTo("comment")
	require.Len(t, comments, 1)
	assert.NotEmpty(t, comments[0].Text)

	rows, err := h.repos.Engagements.ListByPersona(context.Background(), p.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, r.Success)
		assert.Equal(t, acc.ID, r.AccountID)
		assert.Equal(t, "fitness", r.Hashtag)
		if r.Kind == models.ActionFollow {
			assert.Equal(t, "user-a", r.TargetID)
		} else {
			assert.Equal(t, "post-a", r.TargetID)
		}
	}

	report = h.tick(t)
	assert.Zero(t, report.Engaged)
	assert.Len(t, ig.CallsTo("discover"), 2)
	assert.Len(t, ig.CallsTo("like"), 1)
}

func TestUnsupportedKindsAreDropped(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	_, tw := h.account(t, p.ID, models.PlatformTwitter)
	tw.Targets = targets(2)
	tw.LikeFunc = func(context.Context, platform.Target) error {
		return platform.Unsupported(models.PlatformTwitter, "like")
	}
	tw.FollowFunc = func(context.Context, platform.Target) error {
		return platform.Unsupported(models.PlatformTwitter, "follow")
	}

	report := h.tick(t)
	assert.Equal(t, 2, report.Engaged)
	assert.Equal(t, 2, report.Failed)

	h.tick(t)
	h.tick(t)

	assert.Len(t, tw.CallsTo("like"), 1)
	assert.Len(t, tw.CallsTo("follow"), 1)
	assert.Len(t, tw.CallsTo("comment"), 2)

	rows, err := h.repos.Engagements.ListByPersona(context.Background(), p.ID, 20)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		if r.Success {
			continue
		}
		assert.Equal(t, models.EngagementErrorPermanent, r.ErrorKind)
	}
}

func TestFailingTargetStopsAtRetryCeiling(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t, func(p *models.Persona) {
		p.MaxCommentsPerDay = intPtr(0)
		p.MaxFollowsPerDay = intPtr(0)
	})
	_, tw := h.account(t, p.ID, models.PlatformTwitter)
	tw.Targets = targets(1)
	tw.LikeFunc = func(context.Context, platform.Target) error {
		return platform.Transient(models.PlatformTwitter, "like", errors.New("rate limited"))
	}

	for range 5 {
		h.tick(t)
	}

	assert.Len(t, tw.CallsTo("like"), 3)

	rows, err := h.repos.Engagements.ListByPersona(context.Background(), p.ID, 20)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.False(t, r.Success)
		assert.Equal(t, models.EngagementErrorTransient, r.ErrorKind)
	}

	stored, err := h.repos.Personas.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LikesToday)
}

func TestAuthFailureSuspendsAccount(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	acc, tw := h.account(t, p.ID, models.PlatformTwitter)
	tw.PublishFunc = func(context.Context, *models.Content) (platform.PostResult, error) {
		return platform.PostResult{}, platform.Auth(models.PlatformTwitter, "publish", errors.New("token revoked"))
	}
	tw.Targets = targets(2)
	h.inbound(t, acc, "t1", "hi there")
	c := h.content(t, p.ID, nil, models.PlatformTwitter)

	h.tick(t)

	stored, err := h.repos.Accounts.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.ConnectionError, "token revoked")
	assert.False(t, stored.Usable())
	assert.True(t, tw.Closed())
	assert.Empty(t, tw.CallsTo("send_message"))
	assert.Empty(t, tw.CallsTo("like"))

	got := h.load(t, c.ID)
	assert.Equal(t, models.ContentStatusScheduled, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	h.tick(t)
	assert.Len(t, tw.CallsTo("publish"), 1)
}

func TestUnavailablePlatformDoesNotHoldOthers(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	h.account(t, p.ID, models.PlatformYoutube)
	_, ig := h.account(t, p.ID, models.PlatformInstagram)
	c := h.content(t, p.ID, nil, models.PlatformYoutube, models.PlatformInstagram)

	report := h.tick(t)

	got := h.load(t, c.ID)
	assert.Equal(t, models.ContentStatusPosted, got.Status)
	assert.Equal(t, pq.StringArray{"instagram"}, got.PostedPlatforms)
	assert.Empty(t, got.FailedPlatforms)
	assert.Len(t, ig.CallsTo("publish"), 1)
	assert.Equal(t, 1, report.Published)
}

func TestFutureContentWaits(t *testing.T) {
	h := newHarness(t)
	p := h.persona(t)
	_, ig := h.account(t, p.ID, models.PlatformInstagram)
	later := noon.Add(time.Hour)
	c := h.content(t, p.ID, &later, models.PlatformInstagram)

	h.tick(t)
	assert.Empty(t, ig.CallsTo("publish"))
	assert.Equal(t, models.ContentStatusScheduled, h.load(t, c.ID).Status)

	h.clk.Advance(2 * time.Hour)
	h.tick(t)
	assert.Len(t, ig.CallsTo("publish"), 1)
	assert.Equal(t, models.ContentStatusPosted, h.load(t, c.ID).Status)
}

func TestActionsArePaced(t *testing.T) {
	h := newHarness(t, func(c *scheduler.Config) {
		c.MinActionDelay = 30 * time.Second
		c.MaxActionDelay = 30 * time.Second
	})
	p := h.persona(t)
	_, ig := h.account(t, p.ID, models.PlatformInstagram)
	h.content(t, p.ID, nil, models.PlatformInstagram)
	h.content(t, p.ID, nil, models.PlatformInstagram)

	report := h.tick(t)

	assert.Equal(t, 2, report.Published)
	assert.Len(t, ig.CallsTo("publish"), 2)
	assert.Equal(t, 30*time.Second, h.clk.Now().Sub(noon))
}

func TestFaultStaysInsideItsPersona(t *testing.T) {
	h := newHarness(t)
	broken := h.persona(t)
	healthy := h.persona(t)
	_, bad := h.account(t, broken.ID, models.PlatformInstagram)
	bad.PublishFunc = func(context.Context, *models.Content) (platform.PostResult, error) {
		panic("adapter bug")
	}
	h.account(t, healthy.ID, models.PlatformInstagram)
	badContent := h.content(t, broken.ID, nil, models.PlatformInstagram)
	goodContent := h.content(t, healthy.ID, nil, models.PlatformInstagram)

	report := h.tick(t)

	assert.Equal(t, 2, report.Personas)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, models.ContentStatusPosted, h.load(t, goodContent.ID).Status)

	got := h.load(t, badContent.ID)
	assert.Equal(t, models.ContentStatusScheduled, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/api"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
	"github.com/maheshrc27/persona-scheduler/internal/repository/memory"
	"github.com/maheshrc27/persona-scheduler/pkg/utils"
)

const (
	secretKey     = "0123456789abcdef0123456789abcdef"
	webhookSecret = "hook-secret"
)

type recordingClient struct {
	tasks []*asynq.Task
}

func (r *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type fixture struct {
	app   *fiber.App
	repos *repository.Repositories
	queue *recordingClient
	convs *conversation.Lifecycle
	token string
	clk   *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New().Repositories()
	clk := clock.NewFake(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	convs := conversation.NewLifecycle(repos.Conversations, conversation.NewKeywordClassifier(), clk, 3, nil)
	q := &recordingClient{}

	app := api.NewServer(api.Deps{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		Enqueuer:      q,
		Accounts:      repos.Accounts,
		Registry:      platform.NewRegistry(nil),
		Content:       content.NewLifecycle(repos.Contents, clk, 3, nil),
		Conversations: convs,
	})

	token, err := utils.GenerateToken(secretKey, "ops@example.test", time.Hour)
	require.NoError(t, err)
	return &fixture{app: app, repos: repos, queue: q, convs: convs, token: token, clk: clk}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (f *fixture) authed(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	return f.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + f.token})
}

func (f *fixture) account(t *testing.T) *models.PlatformAccount {
	t.Helper()
	acc := &models.PlatformAccount{PersonaID: 1, Platform: models.PlatformInstagram, ExternalID: "1784", IsConnected: true}
	id, err := f.repos.Accounts.Create(context.Background(), acc)
	require.NoError(t, err)
	acc.ID = id
	return acc
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "persona_scheduler_tick_duration_seconds")
}

func TestWebhookQueuesMessages(t *testing.T) {
	f := newFixture(t)
	msg := `{"account_external_id":"1784","thread_id":"th-1","participant_id":"u-1","message_id":"m-1","body":"hi!"}`
	hook := map[string]string{"X-Webhook-Token": webhookSecret}

	status, _ := f.do(t, http.MethodPost, "/webhooks/instagram/messages", msg, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/webhooks/myspace/messages", msg, hook)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPost, "/webhooks/instagram/messages", `{"thread_id":"th-1"}`, hook)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Empty(t, f.queue.tasks)

	status, _ = f.do(t, http.MethodPost, "/webhooks/instagram/messages", msg, hook)
	assert.Equal(t, http.StatusAccepted, status)
	require.Len(t, f.queue.tasks, 1)
	assert.Contains(t, string(f.queue.tasks[0].Payload()), `"platform":"instagram"`)
}

func TestOperatorEndpointsRequireToken(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/content/1/approve", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/api/content/1/approve", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestConversationReview(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t)
	conv, _, err := f.convs.ReceiveInbound(context.Background(), conversation.Inbound{
		Account: acc, ThreadID: "th-1", ParticipantID: "u-1", Body: "hello",
	})
	require.NoError(t, err)
	path := "/api/conversations/" + itoa(conv.ID)

	status, _ := f.authed(t, http.MethodPost, path+"/review", `{"reason":"odd tone"}`)
	assert.Equal(t, http.StatusNoContent, status)
	stored, err := f.repos.Conversations.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.RequiresHumanReview)
	assert.Equal(t, "odd tone", stored.ReviewReason)

	status, _ = f.authed(t, http.MethodDelete, path+"/review", "")
	assert.Equal(t, http.StatusNoContent, status)
	stored, err = f.repos.Conversations.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.False(t, stored.RequiresHumanReview)

	status, body := f.authed(t, http.MethodPost, path+"/pause", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paused", body["status"])

	status, _ = f.authed(t, http.MethodPost, path+"/pause", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = f.authed(t, http.MethodPost, path+"/archive", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.authed(t, http.MethodPost, "/api/conversations/999/close", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAccountPauseAndReconnect(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t)
	path := "/api/accounts/" + itoa(acc.ID)

	status, body := f.authed(t, http.MethodPost, path+"/pause", `{"posting":true}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["posting_paused"])
	assert.Equal(t, false, body["engagement_paused"])

	status, _ = f.authed(t, http.MethodPost, path+"/pause", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	require.NoError(t, f.repos.Accounts.SetConnectionError(context.Background(), acc.ID, "token revoked"))
	status, _ = f.authed(t, http.MethodPost, path+"/reconnect", "")
	assert.Equal(t, http.StatusNoContent, status)
	stored, err := f.repos.Accounts.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.True(t, stored.Usable())

	status, _ = f.authed(t, http.MethodPost, "/api/accounts/999/reconnect", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.authed(t, http.MethodPost, "/api/accounts/abc/reconnect", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestContentReview(t *testing.T) {
	f := newFixture(t)
	id, err := f.repos.Contents.Create(context.Background(), &models.Content{
		PersonaID: 1, Status: models.ContentStatusDraft, TargetPlatforms: []string{"instagram"},
	})
	require.NoError(t, err)
	path := "/api/content/" + itoa(id)

	status, _ := f.authed(t, http.MethodPost, path+"/approve", "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.authed(t, http.MethodPost, path+"/submit", "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = f.authed(t, http.MethodPost, path+"/approve", "")
	assert.Equal(t, http.StatusNoContent, status)

	c, err := f.repos.Contents.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusScheduled, c.Status)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

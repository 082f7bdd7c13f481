package fanvue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New("fv-token", Options{BaseURL: srv.URL, HTTPClient: srv.Client(), Limit: rate.Inf})
}

func TestPublishNSFWGoesToSubscribers(t *testing.T) {
	var got transfer.FanvuePostRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fv-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"uuid":"p-1","url":"https://fanvue.test/p-1"}`))
	})
	a := newTestAdapter(t, mux)

	res, err := a.Publish(context.Background(), &models.Content{
		Caption:   "exclusive",
		MediaURLs: pq.StringArray{"https://cdn.test/a.jpg"},
		IsNSFW:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, audienceSubscribers, got.Audience)
	assert.Equal(t, []string{"https://cdn.test/a.jpg"}, got.MediaURLs)
	assert.Equal(t, "p-1", res.PlatformPostID)
}

func TestSendMessageUsesRecipientChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chats/fan-9/message", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"uuid":"m-1"}`))
	})
	a := newTestAdapter(t, mux)

	id, err := a.SendMessage(context.Background(), "thread-x", "fan-9", "hey")
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
}

func TestUnauthorizedIsAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	a := newTestAdapter(t, mux)

	_, err := a.FetchAnalytics(context.Background())
	assert.True(t, platform.IsAuth(err))
}

func TestFactoryRejectsMissingCredentials(t *testing.T) {
	_, err := NewFactory(Options{})(context.Background(), &models.PlatformAccount{Platform: models.PlatformFanvue})
	assert.True(t, platform.IsAuth(err))
}

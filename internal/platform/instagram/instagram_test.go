package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

type graphStub struct {
	mu         sync.Mutex
	containers []transfer.InstagramContainer
	published  []string
	polls      int
}

func (g *graphStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ig-user/media", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.URL.Query().Get("access_token"))
		var body transfer.InstagramContainer
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		g.mu.Lock()
		g.containers = append(g.containers, body)
		id := "container-" + string(rune('a'+len(g.containers)-1))
		g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(transfer.InstagramID{ID: id})
	})
	mux.HandleFunc("POST /ig-user/media_publish", func(w http.ResponseWriter, r *http.Request) {
		var body transfer.InstagramPublish
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		g.mu.Lock()
		g.published = append(g.published, body.CreationID)
		g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(transfer.InstagramID{ID: "media-1"})
	})
	mux.HandleFunc("GET /media-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transfer.InstagramMedia{ID: "media-1", Permalink: "https://instagram.test/p/1"})
	})
	mux.HandleFunc("GET /container-a", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.polls++
		status := "IN_PROGRESS"
		if g.polls >= 2 {
			status = "FINISHED"
		}
		g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(transfer.InstagramContainerStatus{ID: "container-a", StatusCode: status})
	})
	mux.HandleFunc("GET /ig-user", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transfer.InstagramAccountInfo{ID: "ig-user", FollowersCount: 120, FollowsCount: 80, MediaCount: 14})
	})
	mux.HandleFunc("GET /expired", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Error validating access token","code":190}}`))
	})
	return mux
}

func newTestAdapter(t *testing.T, g *graphStub) *Adapter {
	t.Helper()
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)
	return New("ig-user", "token-1", Options{
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		Limit:        rate.Inf,
		PollInterval: time.Millisecond,
	})
}

func TestPublishSingleImage(t *testing.T) {
	g := &graphStub{}
	a := newTestAdapter(t, g)

	res, err := a.Publish(context.Background(), &models.Content{
		Type:      models.ContentTypePost,
		Caption:   "sunset #travel",
		MediaURLs: pq.StringArray{"https://cdn.test/a.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, "media-1", res.PlatformPostID)
	assert.Equal(t, "https://instagram.test/p/1", res.URL)
	require.Len(t, g.containers, 1)
	assert.Equal(t, "https://cdn.test/a.jpg", g.containers[0].ImageURL)
	assert.Equal(t, "sunset #travel", g.containers[0].Caption)
	assert.Equal(t, []string{"container-a"}, g.published)
}

func TestPublishCarouselCreatesChildren(t *testing.T) {
	g := &graphStub{}
	a := newTestAdapter(t, g)

	_, err := a.Publish(context.Background(), &models.Content{
		Type:      models.ContentTypeCarousel,
		Caption:   "three views",
		MediaURLs: pq.StringArray{"https://cdn.test/1.jpg", "https://cdn.test/2.jpg"},
	})
	require.NoError(t, err)

	require.Len(t, g.containers, 3)
	assert.True(t, g.containers[0].IsCarousel)
	assert.True(t, g.containers[1].IsCarousel)
	assert.Equal(t, "CAROUSEL", g.containers[2].MediaType)
	assert.Equal(t, []string{"container-a", "container-b"}, g.containers[2].Children)
	assert.Equal(t, []string{"container-c"}, g.published)
}

func TestPublishReelWaitsForProcessing(t *testing.T) {
	g := &graphStub{}
	a := newTestAdapter(t, g)

	_, err := a.Publish(context.Background(), &models.Content{
		Type:      models.ContentTypeReel,
		VideoURLs: pq.StringArray{"https://cdn.test/clip.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, "REELS", g.containers[0].MediaType)
	assert.Equal(t, 2, g.polls)
}

func TestPublishWithoutMediaIsPermanent(t *testing.T) {
	a := newTestAdapter(t, &graphStub{})

	_, err := a.Publish(context.Background(), &models.Content{Type: models.ContentTypePost, Caption: "text only"})

	kind, ok := platform.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, platform.KindPermanent, kind)
}

func TestExpiredTokenIsAuth(t *testing.T) {
	a := newTestAdapter(t, &graphStub{})

	err := a.api.Get(context.Background(), "probe", "/expired", nil, nil)
	assert.True(t, platform.IsAuth(err))
}

func TestFetchAnalytics(t *testing.T) {
	a := newTestAdapter(t, &graphStub{})

	stats, err := a.FetchAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, platform.Analytics{Followers: 120, Following: 80, MediaCount: 14}, stats)
}

func TestFollowIsUnsupported(t *testing.T) {
	a := newTestAdapter(t, &graphStub{})

	err := a.Follow(context.Background(), platform.Target{UserID: "u"})
	assert.ErrorIs(t, err, platform.ErrUnsupported)

	assert.False(t, platform.Supports(a, models.ActionFollow))
	assert.False(t, platform.Supports(a, models.ActionLike))
	assert.True(t, platform.Supports(a, models.ActionComment))
}

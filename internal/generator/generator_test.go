package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

func TestGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/content", func(w http.ResponseWriter, r *http.Request) {
		var req transfer.GenerateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Mia", req.PersonaName)
		assert.Equal(t, []string{"travel"}, req.Niches)
		_ = json.NewEncoder(w).Encode(transfer.GenerateContentResponse{
			Caption:   "Sunset in Lisbon #travel",
			MediaURLs: []string{"https://cdn.test/1.jpg"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.Client())
	draft, err := c.Generate(context.Background(), &models.Persona{ID: 1, Name: "Mia", Niches: pq.StringArray{"travel"}}, "lisbon")
	require.NoError(t, err)

	assert.Equal(t, "lisbon", draft.Topic)
	assert.Equal(t, "Sunset in Lisbon #travel", draft.Caption)
}

func TestGenerateRejectsPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"caption":"no media"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, srv.Client()).Generate(context.Background(), &models.Persona{}, "")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestGeneratorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, srv.Client()).CommentText(context.Background(), &models.Persona{}, platform.Target{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestTemplatesAreDeterministic(t *testing.T) {
	tpl := NewTemplates()
	ctx := context.Background()

	a, err := tpl.CommentText(ctx, nil, platform.Target{ID: "post-1"})
	require.NoError(t, err)
	b, err := tpl.CommentText(ctx, nil, platform.Target{ID: "post-1"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	reply, err := tpl.ReplyText(ctx, nil, &models.Conversation{ID: 1, ParticipantHandle: "sam"}, nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "sam")
}

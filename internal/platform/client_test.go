package platform_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

func TestAPIClientClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   platform.ErrorKind
		code   string
	}{
		{http.StatusUnauthorized, platform.KindAuth, apperr.CodeAdapterAuth},
		{http.StatusForbidden, platform.KindAuth, apperr.CodeAdapterAuth},
		{http.StatusRequestTimeout, platform.KindTransient, apperr.CodeAdapterTransient},
		{http.StatusTooManyRequests, platform.KindTransient, apperr.CodeAdapterTransient},
		{http.StatusBadGateway, platform.KindTransient, apperr.CodeAdapterTransient},
		{http.StatusBadRequest, platform.KindPermanent, apperr.CodeAdapterPermanent},
		{http.StatusNotFound, platform.KindPermanent, apperr.CodeAdapterPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			c := platform.NewAPIClient(models.PlatformFanvue, srv.URL, srv.Client(), rate.NewLimiter(rate.Inf, 1))
			err := c.Get(context.Background(), "analytics", "/me", nil, nil)

			kind, ok := platform.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.code, apperr.Code(err))

			var se *platform.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
		})
	}
}

func TestAPIClientDecodesAndAuthorizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	c := platform.NewAPIClient(models.PlatformTwitter, srv.URL+"/", srv.Client(), nil)
	c.Authorize = func(r *http.Request) error {
		r.Header.Set("Authorization", "Bearer secret")
		return nil
	}

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.Post(context.Background(), "publish", "/tweets", map[string]string{"text": "hi"}, &out))
	assert.Equal(t, "42", out.ID)
}

func TestAPIClientNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := platform.NewAPIClient(models.PlatformTwitter, url, nil, nil)
	err := c.Get(context.Background(), "analytics", "/users/me", nil, nil)

	kind, ok := platform.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, platform.KindTransient, kind)
}

func TestAPIClientRefine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":190}}`))
	}))
	defer srv.Close()

	c := platform.NewAPIClient(models.PlatformInstagram, srv.URL, srv.Client(), nil)
	c.Refine = func(int, []byte, platform.ErrorKind) platform.ErrorKind { return platform.KindAuth }

	err := c.Get(context.Background(), "analytics", "/me", nil, nil)
	assert.True(t, platform.IsAuth(err))
}

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

const maxErrorBody = 4 << 10

// StatusError carries a non-2xx platform response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// APIClient is the JSON-over-HTTP client shared by the REST adapters. Every
// request waits on the limiter and every failure is classified into an Error.
type APIClient struct {
	platform models.Platform
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter

	// Authorize decorates outgoing requests, typically with a bearer token.
	Authorize func(req *http.Request) error
	// Refine may override the status-derived kind using the response body.
	Refine func(status int, body []byte, kind ErrorKind) ErrorKind
}

func NewAPIClient(p models.Platform, baseURL string, httpClient *http.Client, limiter *rate.Limiter) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{
		platform: p,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		limiter:  limiter,
	}
}

func (c *APIClient) Get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.Do(ctx, op, http.MethodGet, path, query, nil, out)
}

func (c *APIClient) Post(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, op, http.MethodPost, path, nil, body, out)
}

func (c *APIClient) Do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Transient(c.platform, op, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshalling %s payload: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("error creating %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Authorize != nil {
		if err := c.Authorize(req); err != nil {
			if _, expected := KindOf(err); expected {
				return err
			}
			return Auth(c.platform, op, err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Transient(c.platform, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(c.platform, op, fmt.Errorf("reading response body: %w", err))
	}

	if kind, failed := ClassifyStatus(resp.StatusCode); failed {
		if c.Refine != nil {
			kind = c.Refine(resp.StatusCode, raw, kind)
		}
		snippet := string(raw)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &Error{Kind: kind, Platform: c.platform, Op: op, Err: &StatusError{StatusCode: resp.StatusCode, Body: snippet}}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("error parsing %s response: %w", op, err)
	}
	return nil
}

// Package generator produces captions, comments and replies for personas.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

var ErrEmpty = errors.New("generator returned no content")

// Draft is generated content. A generator returns a complete draft or an error.
type Draft struct {
	Topic     string
	Caption   string
	MediaURLs []string
	VideoURLs []string
}

type ContentGenerator interface {
	Generate(ctx context.Context, persona *models.Persona, topic string) (*Draft, error)
}

// Responder writes comments on other posts and replies to direct messages.
type Responder interface {
	CommentText(ctx context.Context, persona *models.Persona, target platform.Target) (string, error)
	ReplyText(ctx context.Context, persona *models.Persona, conv *models.Conversation, history []*models.DirectMessage) (string, error)
}

// HTTPClient talks to a generation service over JSON.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *HTTPClient) Generate(ctx context.Context, persona *models.Persona, topic string) (*Draft, error) {
	req := transfer.GenerateContentRequest{
		PersonaID:   persona.ID,
		PersonaName: persona.Name,
		Bio:         persona.Bio,
		Niches:      persona.Niches,
		Topic:       topic,
	}
	var resp transfer.GenerateContentResponse
	if err := c.post(ctx, "/v1/content", req, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Caption) == "" || len(resp.MediaURLs)+len(resp.VideoURLs) == 0 {
		return nil, ErrEmpty
	}
	if resp.Topic == "" {
		resp.Topic = topic
	}
	return &Draft{Topic: resp.Topic, Caption: resp.Caption, MediaURLs: resp.MediaURLs, VideoURLs: resp.VideoURLs}, nil
}

func (c *HTTPClient) CommentText(ctx context.Context, persona *models.Persona, target platform.Target) (string, error) {
	return c.reply(ctx, transfer.GenerateReplyRequest{
		PersonaID:   persona.ID,
		PersonaName: persona.Name,
		Bio:         persona.Bio,
		Kind:        "comment",
		Context:     target.Text,
	})
}

func (c *HTTPClient) ReplyText(ctx context.Context, persona *models.Persona, conv *models.Conversation, history []*models.DirectMessage) (string, error) {
	req := transfer.GenerateReplyRequest{
		PersonaID:   persona.ID,
		PersonaName: persona.Name,
		Bio:         persona.Bio,
		Kind:        "direct_message",
		Context:     conv.ParticipantHandle,
	}
	for _, m := range history {
		req.History = append(req.History, transfer.ReplyHistory{Direction: string(m.Direction), Body: m.Body})
	}
	return c.reply(ctx, req)
}

func (c *HTTPClient) reply(ctx context.Context, req transfer.GenerateReplyRequest) (string, error) {
	var resp transfer.GenerateReplyResponse
	if err := c.post(ctx, "/v1/reply", req, &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("generator returned status %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding generator response: %w", err)
	}
	return nil
}

// Templates is a Responder that picks from canned lines, used when no
// generation service is configured. The same target always gets the same line.
type Templates struct {
	Comments []string
	Replies  []string
}

func NewTemplates() *Templates {
	return &Templates{
		Comments: []string{
			"Love this!",
			"This is so good 🔥",
			"Great vibes here",
			"Obsessed with this one",
			"Saving this for later!",
		},
		Replies: []string{
			"Hey %s! Thanks so much for the message 💕",
			"Aww thank you %s, that made my day!",
			"Hi %s! So glad you're here 😊",
		},
	}
}

func (t *Templates) CommentText(_ context.Context, _ *models.Persona, target platform.Target) (string, error) {
	if len(t.Comments) == 0 {
		return "", ErrEmpty
	}
	return t.Comments[pick(target.ID, len(t.Comments))], nil
}

func (t *Templates) ReplyText(_ context.Context, _ *models.Persona, conv *models.Conversation, history []*models.DirectMessage) (string, error) {
	if len(t.Replies) == 0 {
		return "", ErrEmpty
	}
	name := conv.ParticipantHandle
	if name == "" {
		name = "there"
	}
	line := t.Replies[pick(fmt.Sprintf("%d:%d", conv.ID, len(history)), len(t.Replies))]
	return fmt.Sprintf(line, name), nil
}

func pick(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// Package platformtest provides a scriptable adapter for tests.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

type Call struct {
	Op        string
	ContentID int64
	Target    platform.Target
	Text      string
}

// Adapter records every call. A nil func means the call succeeds.
type Adapter struct {
	PlatformName models.Platform
	PublishFunc  func(ctx context.Context, c *models.Content) (platform.PostResult, error)
	LikeFunc     func(ctx context.Context, t platform.Target) error
	CommentFunc  func(ctx context.Context, t platform.Target, text string) error
	FollowFunc   func(ctx context.Context, t platform.Target) error
	SendFunc     func(ctx context.Context, threadID, recipientID, body string) (string, error)
	Targets      []platform.Target
	// Unsupported kinds are reported through Supports.
	Unsupported []models.ActionKind
	Stats        platform.Analytics
	CloseErr     error

	mu     sync.Mutex
	calls  []Call
	closed bool
}

func New(p models.Platform) *Adapter {
	return &Adapter{PlatformName: p}
}

func (a *Adapter) record(c Call) {
	a.mu.Lock()
	a.calls = append(a.calls, c)
	a.mu.Unlock()
}

func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (a *Adapter) CallsTo(op string) []Call {
	var out []Call
	for _, c := range a.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (a *Adapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Adapter) Platform() models.Platform { return a.PlatformName }

func (a *Adapter) Publish(ctx context.Context, c *models.Content) (platform.PostResult, error) {
	a.record(Call{Op: "publish", ContentID: c.ID})
	if a.PublishFunc != nil {
		return a.PublishFunc(ctx, c)
	}
	id := fmt.Sprintf("%s-%d", a.PlatformName, c.ID)
	return platform.PostResult{PlatformPostID: id, URL: "https://example.test/" + id}, nil
}

func (a *Adapter) Like(ctx context.Context, t platform.Target) error {
	a.record(Call{Op: "like", Target: t})
	if a.LikeFunc != nil {
		return a.LikeFunc(ctx, t)
	}
	return nil
}

func (a *Adapter) Comment(ctx context.Context, t platform.Target, text string) error {
	a.record(Call{Op: "comment", Target: t, Text: text})
	if a.CommentFunc != nil {
		return a.CommentFunc(ctx, t, text)
	}
	return nil
}

func (a *Adapter) Follow(ctx context.Context, t platform.Target) error {
	a.record(Call{Op: "follow", Target: t})
	if a.FollowFunc != nil {
		return a.FollowFunc(ctx, t)
	}
	return nil
}

func (a *Adapter) Supports(kind models.ActionKind) bool {
	return !slices.Contains(a.Unsupported, kind)
}

func (a *Adapter) FetchAnalytics(context.Context) (platform.Analytics, error) {
	a.record(Call{Op: "analytics"})
	return a.Stats, nil
}

func (a *Adapter) SendMessage(ctx context.Context, threadID, recipientID, body string) (string, error) {
	a.record(Call{Op: "send_message", Text: body})
	if a.SendFunc != nil {
		return a.SendFunc(ctx, threadID, recipientID, body)
	}
	return "msg-" + threadID, nil
}

func (a *Adapter) Discover(_ context.Context, _ []string, limit int) ([]platform.Target, error) {
	a.record(Call{Op: "discover"})
	if limit > 0 && len(a.Targets) > limit {
		return append([]platform.Target(nil), a.Targets[:limit]...), nil
	}
	return append([]platform.Target(nil), a.Targets...), nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.CloseErr
}

// Factory returns a registry factory that hands out adapters from byAccount,
// falling back to a fresh default adapter.
func Factory(byAccount map[int64]*Adapter) platform.Factory {
	var mu sync.Mutex
	return func(_ context.Context, account *models.PlatformAccount) (platform.Adapter, error) {
		mu.Lock()
		defer mu.Unlock()
		if a, ok := byAccount[account.ID]; ok {
			return a, nil
		}
		a := New(account.Platform)
		byAccount[account.ID] = a
		return a, nil
	}
}

package platform

import (
	"context"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

// serialAdapter admits one call at a time to the wrapped adapter. Waiting for
// the slot honors the caller's context.
type serialAdapter struct {
	inner Adapter
	slot  chan struct{}
}

func newSerialAdapter(inner Adapter) *serialAdapter {
	return &serialAdapter{inner: inner, slot: make(chan struct{}, 1)}
}

func (s *serialAdapter) acquire(ctx context.Context, op string) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return Transient(s.inner.Platform(), op, ctx.Err())
	}
}

func (s *serialAdapter) release() { <-s.slot }

func (s *serialAdapter) Platform() models.Platform { return s.inner.Platform() }

func (s *serialAdapter) Publish(ctx context.Context, content *models.Content) (PostResult, error) {
	if err := s.acquire(ctx, "publish"); err != nil {
		return PostResult{}, err
	}
	defer s.release()
	return s.inner.Publish(ctx, content)
}

func (s *serialAdapter) Like(ctx context.Context, target Target) error {
	if err := s.acquire(ctx, "like"); err != nil {
		return err
	}
	defer s.release()
	return s.inner.Like(ctx, target)
}

func (s *serialAdapter) Comment(ctx context.Context, target Target, text string) error {
	if err := s.acquire(ctx, "comment"); err != nil {
		return err
	}
	defer s.release()
	return s.inner.Comment(ctx, target, text)
}

func (s *serialAdapter) Follow(ctx context.Context, target Target) error {
	if err := s.acquire(ctx, "follow"); err != nil {
		return err
	}
	defer s.release()
	return s.inner.Follow(ctx, target)
}

func (s *serialAdapter) FetchAnalytics(ctx context.Context) (Analytics, error) {
	if err := s.acquire(ctx, "analytics"); err != nil {
		return Analytics{}, err
	}
	defer s.release()
	return s.inner.FetchAnalytics(ctx)
}

func (s *serialAdapter) SendMessage(ctx context.Context, threadID, recipientID, body string) (string, error) {
	m, ok := s.inner.(Messenger)
	if !ok {
		return "", Unsupported(s.inner.Platform(), "send_message")
	}
	if err := s.acquire(ctx, "send_message"); err != nil {
		return "", err
	}
	defer s.release()
	return m.SendMessage(ctx, threadID, recipientID, body)
}

func (s *serialAdapter) Discover(ctx context.Context, hashtags []string, limit int) ([]Target, error) {
	d, ok := s.inner.(Discoverer)
	if !ok {
		return nil, Unsupported(s.inner.Platform(), "discover")
	}
	if err := s.acquire(ctx, "discover"); err != nil {
		return nil, err
	}
	defer s.release()
	return d.Discover(ctx, hashtags, limit)
}

// Close waits for any in-flight call before closing the adapter.
func (s *serialAdapter) Close() error {
	s.slot <- struct{}{}
	defer s.release()
	return s.inner.Close()
}

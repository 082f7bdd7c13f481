package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/persona-scheduler/internal/scheduler"
)

type blockingTicker struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func (b *blockingTicker) Tick(ctx context.Context) (*scheduler.Report, error) {
	b.calls.Add(1)
	if b.started != nil {
		close(b.started)
		<-b.release
	}
	return &scheduler.Report{}, b.err
}

func TestTickJobSkipsOverlappingRuns(t *testing.T) {
	ticker := &blockingTicker{started: make(chan struct{}), release: make(chan struct{})}
	j := NewTickJob(context.Background(), ticker, time.Minute, nil)

	done := make(chan bool)
	go func() {
		ran, _ := j.RunOnce(context.Background())
		done <- ran
	}()
	<-ticker.started

	ran, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(ticker.release)
	assert.True(t, <-done)
	assert.EqualValues(t, 1, ticker.calls.Load())

	ticker.started = nil
	ran, err = j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestTickJobReportsFailure(t *testing.T) {
	ticker := &blockingTicker{err: errors.New("store down")}
	j := NewTickJob(context.Background(), ticker, 0, nil)

	ran, err := j.RunOnce(context.Background())
	assert.True(t, ran)
	assert.EqualError(t, err, "store down")
}

func TestTickJobWaitDrainsRunningPass(t *testing.T) {
	ticker := &blockingTicker{started: make(chan struct{}), release: make(chan struct{})}
	j := NewTickJob(context.Background(), ticker, 0, nil)

	go func() { _, _ = j.RunOnce(context.Background()) }()
	<-ticker.started

	drained := make(chan struct{})
	go func() {
		j.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("Wait returned while a pass was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(ticker.release)
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the pass finished")
	}

	ran, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.EqualValues(t, 1, ticker.calls.Load())
}

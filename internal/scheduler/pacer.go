package scheduler

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/clock"
)

// pacer spaces consecutive actions of a persona by a random gap between the
// minimum and maximum action delay.
type pacer struct {
	clock    clock.Clock
	min, max time.Duration

	mu   sync.Mutex
	last map[int64]time.Time
}

func newPacer(clk clock.Clock, lo, hi time.Duration) *pacer {
	if hi < lo {
		hi = lo
	}
	return &pacer{clock: clk, min: lo, max: hi, last: make(map[int64]time.Time)}
}

func (p *pacer) gap() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + rand.N(p.max-p.min+1)
}

// wait blocks until the persona may act again.
func (p *pacer) wait(ctx context.Context, personaID int64) error {
	p.mu.Lock()
	last, seen := p.last[personaID]
	gap := p.gap()
	p.mu.Unlock()

	if !seen {
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, last.Add(gap).Sub(p.clock.Now()))
}

// mark records that the persona just finished an action.
func (p *pacer) mark(personaID int64) {
	now := p.clock.Now()
	p.mu.Lock()
	p.last[personaID] = now
	p.mu.Unlock()
}

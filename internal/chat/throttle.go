package chat

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle enforces a minimum interval between successive calls. It is a
// fixed-interval limiter: Wait sleeps whatever remains of the interval since
// the previous call.
type Throttle struct {
	clock    clockwork.Clock
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewThrottle returns a Throttle; a non-positive interval never waits.
func NewThrottle(clock clockwork.Clock, interval time.Duration) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{clock: clock, interval: interval}
}

// Wait blocks until a call may be issued and records it as issued.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval > 0 && !t.last.IsZero() {
		if remaining := t.interval - t.clock.Since(t.last); remaining > 0 {
			timer := t.clock.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.Chan():
			}
		}
	}
	t.last = t.clock.Now()
	return nil
}

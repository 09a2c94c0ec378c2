// Package retry holds the bounded exponential backoff used around external
// generation calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// Policy describes when and how often a failing operation is retried.
// The schedule is deterministic: InitialInterval, then multiplied by
// Multiplier each time, capped at MaxInterval.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration

	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries nothing.
	Retryable func(error) bool

	// RetryAfter reports a wait the failed call asked for. The next wait is
	// raised to it, never beyond MaxInterval.
	RetryAfter func(error) time.Duration

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)

	Clock clockwork.Clock
}

// Default returns three attempts waiting 1s then 2s, capped at 4s.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     4 * time.Second,
		Retryable:       retryable,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		err := op(ctx)
		lastErr = err
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}
	exp := p.backOff()
	hinted := &hintedBackOff{BackOff: exp, max: exp.MaxInterval, hint: func() time.Duration {
		if p.RetryAfter == nil || lastErr == nil {
			return 0
		}
		return p.RetryAfter(lastErr)
	}}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, p.retries()), ctx)
	return backoff.RetryNotifyWithTimer(operation, b, notify, &clockTimer{clock: p.clock()})
}

// Schedule lists the waits Do would perform if every attempt failed.
func (p Policy) Schedule() []time.Duration {
	b := p.backOff()
	out := make([]time.Duration, 0, p.retries())
	for i := uint64(0); i < p.retries(); i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func (p Policy) retries() uint64 {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return uint64(p.MaxAttempts - 1)
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	initial := p.InitialInterval
	if initial <= 0 {
		initial = backoff.DefaultInitialInterval
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	maxInterval := p.MaxInterval
	if maxInterval < initial {
		maxInterval = initial
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMultiplier(mult),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
}

func (p Policy) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}
	return p.Clock
}

// hintedBackOff raises each wait to the hint, capped at max.
type hintedBackOff struct {
	backoff.BackOff
	max  time.Duration
	hint func() time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if w := h.hint(); w > d {
		d = min(w, h.max)
	}
	return d
}

// clockTimer adapts a clockwork clock to backoff.Timer.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	t.timer = t.clock.NewTimer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     4 * time.Millisecond,
		Retryable:       isBusy,
	}
}

func TestDefaultSchedule(t *testing.T) {
	p := Default(isBusy)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, p.Schedule())

	p.MaxAttempts = 5
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, p.Schedule())
}

func TestDoRetriesRetryableUntilExhausted(t *testing.T) {
	calls := 0
	var waits []time.Duration
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, len(waits)+1, attempt)
		waits = append(waits, wait)
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("bad credentials")
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errBusy
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoSingleAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(1).Do(context.Background(), func(context.Context) error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, calls)
}

func TestDoWaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := Default(isBusy)
	p.Clock = clock

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("retry did not finish")
	}
	assert.Equal(t, 3, calls)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Default(isBusy)
	p.OnRetry = func(int, error, time.Duration) { cancel() }

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type slowDown struct{ after time.Duration }

func (e slowDown) Error() string { return "slow down" }

func TestDoStretchesWaitToRetryAfter(t *testing.T) {
	var waits []time.Duration
	p := fastPolicy(4)
	p.Retryable = func(error) bool { return true }
	p.RetryAfter = func(err error) time.Duration {
		var sd slowDown
		if errors.As(err, &sd) {
			return sd.after
		}
		return 0
	}
	p.OnRetry = func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }

	hints := []time.Duration{3 * time.Millisecond, time.Hour, 0}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls > len(hints) {
			return nil
		}
		return slowDown{after: hints[calls-1]}
	})
	require.NoError(t, err)
	// 1ms raised to 3ms; 2ms raised to the 4ms cap; 4ms untouched.
	assert.Equal(t, []time.Duration{3 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}, waits)
}

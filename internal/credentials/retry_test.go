package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func immediatePolicy(maxAttempts int, recorded *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		jitter:      func(d time.Duration) time.Duration { return d },
		sleep: func(_ context.Context, d time.Duration) error {
			*recorded = append(*recorded, d)
			return nil
		},
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	t.Run("succeeds_first_attempt", func(t *testing.T) {
		var delays []time.Duration
		p := immediatePolicy(3, &delays)

		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, delays)
	})

	t.Run("retries_then_succeeds", func(t *testing.T) {
		var delays []time.Duration
		p := immediatePolicy(3, &delays)

		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	})

	t.Run("exhausts_attempts", func(t *testing.T) {
		var delays []time.Duration
		p := immediatePolicy(3, &delays)

		wantErr := errors.New("still down")
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return wantErr
		})

		require.ErrorIs(t, err, wantErr)
		assert.Equal(t, 3, calls)
	})

	t.Run("caps_delay", func(t *testing.T) {
		var delays []time.Duration
		p := immediatePolicy(6, &delays)

		calls := 0
		_ = p.Do(context.Background(), func(context.Context) error {
			calls++
			return errors.New("down")
		})

		require.Equal(t, 6, calls)
		// 1s, 2s, 4s, 8s, then capped at 10s
		assert.Equal(t, 10*time.Second, delays[len(delays)-1])
	})

	t.Run("cancelled_context_aborts_wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			jitter:      func(d time.Duration) time.Duration { return d },
			sleep: func(ctx context.Context, _ time.Duration) error {
				return ctx.Err()
			},
		}

		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return errors.New("transient")
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRandomJitter_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := randomJitter(4 * time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 4*time.Second)
	}
	assert.Equal(t, time.Duration(0), randomJitter(0))
}

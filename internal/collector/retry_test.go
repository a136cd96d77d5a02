package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Do(t *testing.T) {
	t.Run("returns immediately on success", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{}.Do(context.Background(), func() error {
			calls++
			return nil
		}, nil)

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := RetryPolicy{}.Do(context.Background(), func() error {
			calls++
			return boom
		}, nil)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries rate limits until success", func(t *testing.T) {
		sleeper := &noSleep{}
		var attempts []int
		calls := 0

		err := RetryPolicy{Sleep: sleeper.Sleep}.Do(context.Background(), func() error {
			calls++
			if calls < 4 {
				return &RateLimited{Wait: time.Duration(calls) * time.Second}
			}
			return nil
		}, func(_ time.Duration, attempt int) { attempts = append(attempts, attempt) })

		assert.NoError(t, err)
		assert.Equal(t, 4, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.waits)
		assert.Equal(t, []int{1, 2, 3}, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		sleeper := &noSleep{}
		calls := 0

		err := RetryPolicy{MaxAttempts: 1, Sleep: sleeper.Sleep}.Do(context.Background(), func() error {
			calls++
			return &RateLimited{Wait: time.Second}
		}, nil)

		var rl *RateLimited
		assert.ErrorAs(t, err, &rl)
		assert.Equal(t, 2, calls)
		assert.Len(t, sleeper.waits, 1)
	})

	t.Run("stops when context is canceled during sleep", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryPolicy{}.Do(ctx, func() error {
			return &RateLimited{Wait: time.Hour}
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSleepContext(t *testing.T) {
	start := time.Now()
	assert.NoError(t, sleepContext(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

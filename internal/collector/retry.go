package collector

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy governs how a page fetch reacts to a flood wait.
type RetryPolicy struct {
	// MaxAttempts - retries per page after a flood wait. 0 means unbounded.
	MaxAttempts int

	// Sleep waits d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries flood waits indefinitely with a real timer.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{}
}

// Do runs fetch, sleeping the server-specified wait and retrying the same
// call whenever it fails with RateLimited. onWait is told about each wait.
func (p RetryPolicy) Do(ctx context.Context, fetch func() error, onWait func(wait time.Duration, attempt int)) error {
	attempt := 0
	for {
		err := fetch()
		if err == nil {
			return nil
		}

		var rl *RateLimited
		if !errors.As(err, &rl) {
			return err
		}

		attempt++
		if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
			return err
		}
		if onWait != nil {
			onWait(rl.Wait, attempt)
		}
		if err := p.sleep(ctx, rl.Wait); err != nil {
			return err
		}
	}
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

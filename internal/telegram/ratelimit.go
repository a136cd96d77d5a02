package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to the Telegram API and holds every caller
// back while a FLOOD_WAIT is in force.
type RateLimiter struct {
	limiter *rate.Limiter

	floodWaitUntil time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a rate limiter for Telegram.
// rps - requests per second (1-2 is safe for long history exports)
// burst - allowed burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 2.0
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter returns a limiter with conservative settings.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(2.0, 1)
}

// Wait blocks until the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if remaining := r.FloodWaitRemaining(); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetFloodWait blocks further requests for d.
// A shorter wait never cuts an active one short.
func (r *RateLimiter) SetFloodWait(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(r.floodWaitUntil) {
		r.floodWaitUntil = until
	}
}

// FloodWaitRemaining returns how long the active flood wait still lasts.
func (r *RateLimiter) FloodWaitRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := time.Until(r.floodWaitUntil); d > 0 {
		return d
	}
	return 0
}

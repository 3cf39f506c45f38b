package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out repeated operations such as live price polls. It
// admits one operation per interval with no burst beyond the first.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewRateLimiter creates a RateLimiter that allows one operation every
// interval. A non-positive interval disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// NewRateLimiterPerMinute creates a RateLimiter that allows perMinute
// operations per minute.
func NewRateLimiterPerMinute(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return NewRateLimiter(0)
	}
	return NewRateLimiter(time.Minute / time.Duration(perMinute))
}

// Interval returns the configured spacing between operations.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Wait blocks until the next operation is allowed or the context is
// cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

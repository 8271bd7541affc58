package polygon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FreeTierInterval spaces requests for a 5 req/min key.
const FreeTierInterval = 12 * time.Second

// rateLimiter keeps at least delayPerReq between request starts.
type rateLimiter struct {
	mu          sync.Mutex
	last        time.Time
	delayPerReq time.Duration
	log         *slog.Logger
}

func newRateLimiter(delay time.Duration, logger *slog.Logger) *rateLimiter {
	return &rateLimiter{delayPerReq: delay, log: logger}
}

// Wait blocks until the next request may start or ctx is done.
// The slot is reserved before sleeping so concurrent callers queue up.
func (r *rateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.delayPerReq <= 0 {
		return ctx.Err()
	}
	r.mu.Lock()
	now := time.Now()
	next := r.last.Add(r.delayPerReq)
	if next.Before(now) {
		next = now
	}
	r.last = next
	r.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return ctx.Err()
	}
	r.log.Debug("rate limit wait", "wait", wait.Round(time.Millisecond))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

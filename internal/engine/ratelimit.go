package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultRateLimitPause applies after a 429 without a usable Retry-After.
const defaultRateLimitPause = 60 * time.Second

// Limiter paces outbound upstream requests with a token bucket and holds
// all traffic back for a while after the upstream answers 429.
// A nil *Limiter never waits.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	pause   time.Duration
}

// NewLimiter allows rps requests per second with the given burst.
// rps <= 0 disables pacing but keeps the 429 pause.
func NewLimiter(rps float64, burst int, pause time.Duration) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	if pause <= 0 {
		pause = defaultRateLimitPause
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst), pause: pause}
}

// Wait blocks until a request may be sent.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return l.limiter.Wait(ctx)
}

// RecordRateLimited starts a pause. retryAfter <= 0 uses the default pause.
func (l *Limiter) RecordRateLimited(retryAfter time.Duration) {
	if l == nil {
		return
	}
	if retryAfter <= 0 {
		retryAfter = l.pause
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if at := time.Now().Add(retryAfter); at.After(l.retryAt) {
		l.retryAt = at
	}
}

// Paused reports whether a 429 pause is in effect.
func (l *Limiter) Paused() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.retryAt)
}

// Package ratelimit enforces a minimum delay between outbound requests
// to one source. A single Limiter instance is constructed per source and
// shared by every client of that source, so concurrent callers can never
// hit the target faster than the configured interval.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter serializes callers through one mutex: the elapsed-time check,
// the sleep, and the timestamp update form a single critical section.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// New returns a limiter with the given minimum interval between requests.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Interval returns the configured minimum delay.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until at least the configured interval has elapsed since
// the previous Wait returned. The first call never waits. Returns early
// with the context error if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.last.IsZero() {
		l.last = now
		return nil
	}

	if elapsed := now.Sub(l.last); elapsed < l.interval {
		timer := time.NewTimer(l.interval - elapsed)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	// Stamp after the sleep so back-to-back callers measure from the
	// moment the previous caller was released.
	l.last = time.Now()
	return nil
}

package fetch

import (
	"context"
	"log/slog"
	"time"
)

// Policy describes a bounded retry with exponential backoff. The zero
// value never retries; DefaultPolicy matches the behavior both source
// clients want (3 attempts, 2s doubling to a 10s cap).
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	BackoffMax  time.Duration
	// Retryable decides whether an attempt error qualifies for another
	// try. Nil means retry everything.
	Retryable func(error) bool
}

// DefaultPolicy retries transient network failures only.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		BackoffMax:  10 * time.Second,
		Retryable:   Transient,
	}
}

// GenericPolicy retries any error, for sources where transport and API
// failures are indistinguishable.
func GenericPolicy() Policy {
	p := DefaultPolicy()
	p.Retryable = nil
	return p
}

func (p Policy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if p.BackoffMax > 0 && delay > p.BackoffMax {
		delay = p.BackoffMax
	}
	return delay
}

// Do runs op, retrying per the policy. The last error is returned when
// all attempts are exhausted or the error does not qualify for retry.
func Do(ctx context.Context, policy Policy, op func() error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = op()
		if err == nil {
			return nil
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := policy.delay(attempt)
		slog.Debug("retrying request",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

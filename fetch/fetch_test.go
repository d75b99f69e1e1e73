package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(Classify(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("Classify(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestTransient(t *testing.T) {
	if !Transient(ErrTimeout{Err: errors.New("t")}) {
		t.Fatalf("timeout should be transient")
	}
	if !Transient(ErrConnection{Err: errors.New("c")}) {
		t.Fatalf("connection should be transient")
	}
	if Transient(ErrNotFound{Err: errors.New("nf")}) {
		t.Fatalf("not found must not be transient")
	}
	if Transient(ErrForbidden{Err: errors.New("f")}) {
		t.Fatalf("forbidden must not be transient")
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	policy := DefaultPolicy()
	policy.Backoff = time.Millisecond

	calls := 0
	err := Do(context.Background(), policy, func() error {
		calls++
		return ErrNotFound{Err: errors.New("missing")}
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDoRetriesTransientUntilExhausted(t *testing.T) {
	policy := DefaultPolicy()
	policy.Backoff = time.Millisecond
	policy.BackoffMax = 2 * time.Millisecond

	calls := 0
	err := Do(context.Background(), policy, func() error {
		calls++
		return ErrTimeout{Err: errors.New("slow")}
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	policy := DefaultPolicy()
	policy.Backoff = time.Millisecond

	calls := 0
	err := Do(context.Background(), policy, func() error {
		calls++
		if calls < 2 {
			return ErrConnection{Err: errors.New("refused")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestPolicyBackoffCapped(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Backoff: 2 * time.Second, BackoffMax: 10 * time.Second}

	if d := policy.delay(1); d != 2*time.Second {
		t.Fatalf("delay(1) = %v, want 2s", d)
	}
	if d := policy.delay(3); d != 8*time.Second {
		t.Fatalf("delay(3) = %v, want 8s", d)
	}
	if d := policy.delay(4); d != 10*time.Second {
		t.Fatalf("delay(4) = %v, want cap 10s", d)
	}
}

func TestDoHonorsContext(t *testing.T) {
	policy := DefaultPolicy()
	policy.Backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Do(ctx, policy, func() error {
		return ErrTimeout{Err: errors.New("slow")}
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

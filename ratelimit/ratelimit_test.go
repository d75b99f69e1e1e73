package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFirstCallNeverWaits(t *testing.T) {
	l := New(time.Second)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first call waited %v", elapsed)
	}
}

func TestBackToBackCallsSpacedByInterval(t *testing.T) {
	const interval = 120 * time.Millisecond
	l := New(interval)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < interval-10*time.Millisecond {
		t.Fatalf("second call returned after %v, want >= %v", elapsed, interval)
	}
}

func TestConcurrentCallersSerialize(t *testing.T) {
	const (
		interval = 60 * time.Millisecond
		callers  = 4
	)
	l := New(interval)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != callers {
		t.Fatalf("got %d completions, want %d", len(times), callers)
	}
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < interval-15*time.Millisecond {
			t.Fatalf("completions %d and %d only %v apart, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	l := New(time.Minute)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterBoundNeverExceeded(t *testing.T) {
	const max = 3
	l := NewLimiter(max)
	ctx := context.Background()

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.GoSync(ctx, func() error {
				current := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if current <= p || atomic.CompareAndSwapInt64(&peak, p, current) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("GoSync failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > max {
		t.Errorf("observed %d concurrent operations, limit is %d", got, max)
	}
	if got := l.CurrentActive(); got != 0 {
		t.Errorf("expected 0 active permits after drain, got %d", got)
	}
	if got := l.Waiting(); got != 0 {
		t.Errorf("expected empty waiter queue, got %d", got)
	}
}

func TestLimiterFIFOOrder(t *testing.T) {
	l := NewLimiter(1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	const waiters = 5
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("waiter %d failed: %v", i, err)
				return
			}
			order <- i
			l.Release()
		}(i)
		time.Sleep(10 * time.Millisecond)
	}

	l.Release()
	wg.Wait()
	close(order)

	prev := -1
	for got := range order {
		if got != prev+1 {
			t.Fatalf("permits granted out of order: got %d after %d", got, prev)
		}
		prev = got
	}
}

func TestGoSyncReleasesOnError(t *testing.T) {
	l := NewLimiter(1)
	boom := errors.New("boom")

	err := l.GoSync(context.Background(), func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got := l.CurrentActive(); got != 0 {
		t.Errorf("permit leaked after failing fn: active=%d", got)
	}

	// The permit must be reusable immediately.
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after failed GoSync: %v", err)
	}
	l.Release()
}

func TestAcquireCancelledWhileWaiting(t *testing.T) {
	l := NewLimiter(1)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Acquire(ctx)
	}()

	// Wait until the second caller is queued, then cancel it.
	deadline := time.Now().Add(time.Second)
	for l.Waiting() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("second Acquire never queued")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := l.Waiting(); got != 0 {
		t.Errorf("cancelled waiter left in queue: %d", got)
	}

	l.Release()
	if got := l.CurrentActive(); got != 0 {
		t.Errorf("expected 0 active after release, got %d", got)
	}
}

func TestLimiterMetrics(t *testing.T) {
	l := NewLimiter(2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.GoSync(ctx, func() error { return nil }); err != nil {
			t.Fatalf("GoSync failed: %v", err)
		}
	}

	m := l.GetMetrics()
	if m.TotalAcquired != 4 {
		t.Errorf("TotalAcquired = %d, want 4", m.TotalAcquired)
	}
	if m.TotalReleased != 4 {
		t.Errorf("TotalReleased = %d, want 4", m.TotalReleased)
	}
	if m.PeakConcurrent < 1 || m.PeakConcurrent > 2 {
		t.Errorf("PeakConcurrent = %d, want within [1,2]", m.PeakConcurrent)
	}
}

func TestCircuitBreakerBlocksAcquire(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	l := NewLimiterWithCircuitBreaker(1, cb)
	ctx := context.Background()

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = l.GoSync(ctx, func() error { return boom })
	}

	if got := l.GetCircuitBreakerState(); got != "open" {
		t.Fatalf("circuit state = %s, want open", got)
	}
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("Acquire should fail while the circuit is open")
	}
}

func TestGoRunsAsync(t *testing.T) {
	l := NewLimiter(1)
	done := make(chan struct{})

	err := l.Go(context.Background(), func() error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Go failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Go never executed fn")
	}
}

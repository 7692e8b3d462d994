package locking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"go.uber.org/zap"
)

func TestAcquireRelease(t *testing.T) {
	m := NewManager(zap.NewNop())
	ctx := context.Background()

	if err := m.Acquire(ctx, "root-1", time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !m.Held("root-1") {
		t.Error("key should be held after Acquire")
	}

	m.Release("root-1")
	if m.Held("root-1") {
		t.Error("key should not be held after Release")
	}
}

func TestIndependentKeys(t *testing.T) {
	m := NewManager(zap.NewNop())
	ctx := context.Background()

	if err := m.Acquire(ctx, "a", time.Second); err != nil {
		t.Fatalf("Acquire a failed: %v", err)
	}
	// A different key must not block.
	if err := m.Acquire(ctx, "b", 50*time.Millisecond); err != nil {
		t.Fatalf("Acquire b should not block behind a: %v", err)
	}
	m.Release("a")
	m.Release("b")
}

func TestAcquireTimeout(t *testing.T) {
	m := NewManager(zap.NewNop())
	ctx := context.Background()

	if err := m.Acquire(ctx, "root-1", time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	err := m.Acquire(ctx, "root-1", 50*time.Millisecond)
	if err == nil {
		t.Fatal("second Acquire should have timed out")
	}
	if !sdkerrors.IsLockTimeout(err) {
		t.Errorf("expected lock timeout error, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("Acquire returned before the timeout elapsed")
	}

	// The owner is unaffected by the failed waiter.
	if !m.Held("root-1") {
		t.Error("key should still be held by the original owner")
	}
	m.Release("root-1")
	if m.Held("root-1") {
		t.Error("timed-out waiter should leave no state behind")
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	m := NewManager(zap.NewNop())

	if err := m.Acquire(context.Background(), "root-1", time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := m.Acquire(ctx, "root-1", 5*time.Second)
	if !sdkerrors.IsLockTimeout(err) {
		t.Errorf("cancelled wait should map to the lock timeout error, got %v", err)
	}
	m.Release("root-1")
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	m := NewManager(zap.NewNop())

	// Must not panic or corrupt state.
	m.Release("never-acquired")

	if err := m.Acquire(context.Background(), "never-acquired", time.Second); err != nil {
		t.Fatalf("Acquire after spurious release failed: %v", err)
	}
	m.Release("never-acquired")
	m.Release("never-acquired")
}

func TestMutualExclusion(t *testing.T) {
	m := NewManager(zap.NewNop())
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, "shared", 5*time.Second, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most 1 holder at a time, observed %d", maxInside)
	}
	if m.Held("shared") {
		t.Error("lock should be free after all holders finish")
	}
}

func TestFIFOHandoff(t *testing.T) {
	m := NewManager(zap.NewNop())
	ctx := context.Background()

	if err := m.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	const waiters = 5
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := m.Acquire(ctx, "k", 5*time.Second); err != nil {
				t.Errorf("waiter %d failed: %v", i, err)
				return
			}
			order <- i
			m.Release("k")
		}(i)
		// Stagger so queue positions match goroutine indices.
		time.Sleep(10 * time.Millisecond)
	}

	m.Release("k")
	wg.Wait()
	close(order)

	prev := -1
	for got := range order {
		if got != prev+1 {
			t.Fatalf("waiters woke out of order: got %d after %d", got, prev)
		}
		prev = got
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	m := NewManager(zap.NewNop())
	boom := errors.New("boom")

	err := m.WithLock(context.Background(), "k", time.Second, func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if m.Held("k") {
		t.Error("lock should be released when fn fails")
	}
}

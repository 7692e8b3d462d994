// Package concurrency provides the bounded permit pool that caps how many
// detail fetches are in flight at once, plus the circuit breaker and the
// environment-driven configuration shared by the SDK.
package concurrency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks concurrency limiter performance metrics
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
}

// Limiter is a counting permit pool with strict FIFO fairness. When all
// permits are taken, callers join an explicit waiter queue and Release hands
// the freed permit directly to the head of the queue, so the earliest Acquire
// always wins and the active count never exceeds the configured maximum.
type Limiter struct {
	mu      sync.Mutex
	max     int
	active  int
	waiters []chan struct{}

	metrics        Metrics
	circuitBreaker *CircuitBreaker
}

// NewLimiter creates a new concurrency limiter with the specified maximum
// number of simultaneously active operations.
func NewLimiter(maxPermits int) *Limiter {
	return NewLimiterWithCircuitBreaker(maxPermits, NewCircuitBreaker(100, 30*time.Second))
}

// NewLimiterWithCircuitBreaker creates a limiter with custom circuit breaker settings
func NewLimiterWithCircuitBreaker(maxPermits int, cb *CircuitBreaker) *Limiter {
	if maxPermits <= 0 {
		maxPermits = 1
	}
	return &Limiter{
		max:            maxPermits,
		circuitBreaker: cb,
	}
}

// Acquire obtains a permit, blocking in FIFO order behind earlier callers
// when the pool is exhausted. It fails if the context is cancelled while
// waiting or the circuit breaker is open. A cancelled waiter is removed from
// the queue exactly once and leaks no permit.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.circuitBreaker != nil && l.circuitBreaker.IsOpen() {
		return fmt.Errorf("circuit breaker is open")
	}

	start := time.Now()

	l.mu.Lock()
	if l.active < l.max {
		l.active++
		current := int64(l.active)
		l.mu.Unlock()
		l.recordAcquire(start, current)
		return nil
	}

	grant := make(chan struct{})
	l.waiters = append(l.waiters, grant)
	l.mu.Unlock()

	select {
	case <-grant:
		// Release handed us its permit; active was left incremented for us.
		l.mu.Lock()
		current := int64(l.active)
		l.mu.Unlock()
		l.recordAcquire(start, current)
		return nil

	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range l.waiters {
			if w == grant {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The grant raced ahead of the cancellation: we own a permit we no
		// longer want, so put it back before reporting the cancellation.
		l.Release()
		return ctx.Err()
	}
}

// Release returns a permit to the pool. If waiters are queued the permit is
// handed to the earliest one without the active count ever dipping.
func (l *Limiter) Release() {
	l.mu.Lock()
	if len(l.waiters) > 0 {
		grant := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.mu.Unlock()
		atomic.AddInt64(&l.metrics.TotalReleased, 1)
		close(grant)
		return
	}
	if l.active > 0 {
		l.active--
		l.mu.Unlock()
		atomic.AddInt64(&l.metrics.TotalReleased, 1)
		return
	}
	l.mu.Unlock()
	// Release without a matching Acquire; nothing to return.
}

// Go executes fn in a goroutine once a permit is acquired. The permit is
// released when fn returns and its outcome is recorded by the circuit breaker.
func (l *Limiter) Go(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}

	go func() {
		defer l.Release()
		l.record(fn())
	}()

	return nil
}

// GoSync executes fn synchronously under a permit, releasing it on every exit
// path. This is the scoped-acquisition entry point the pipeline routes each
// detail fetch through.
func (l *Limiter) GoSync(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()

	err := fn()
	l.record(err)
	return err
}

// CurrentActive returns the number of permits currently held.
func (l *Limiter) CurrentActive() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(l.active)
}

// Waiting returns the number of callers queued behind the pool.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// GetMetrics returns a copy of the current metrics
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalAcquired:   atomic.LoadInt64(&l.metrics.TotalAcquired),
		TotalReleased:   atomic.LoadInt64(&l.metrics.TotalReleased),
		PeakConcurrent:  atomic.LoadInt64(&l.metrics.PeakConcurrent),
		TotalWaitTimeNs: atomic.LoadInt64(&l.metrics.TotalWaitTimeNs),
	}
}

// GetAverageWaitTime calculates the average wait time for acquiring a permit
func (l *Limiter) GetAverageWaitTime() time.Duration {
	metrics := l.GetMetrics()
	if metrics.TotalAcquired == 0 {
		return 0
	}
	return time.Duration(metrics.TotalWaitTimeNs / metrics.TotalAcquired)
}

// GetCircuitBreakerState returns the current state of the circuit breaker
func (l *Limiter) GetCircuitBreakerState() string {
	if l.circuitBreaker != nil && l.circuitBreaker.IsOpen() {
		return "open"
	}
	return "closed"
}

func (l *Limiter) record(err error) {
	if l.circuitBreaker == nil {
		return
	}
	if err != nil {
		l.circuitBreaker.RecordFailure()
	} else {
		l.circuitBreaker.RecordSuccess()
	}
}

func (l *Limiter) recordAcquire(start time.Time, current int64) {
	atomic.AddInt64(&l.metrics.TotalWaitTimeNs, time.Since(start).Nanoseconds())
	atomic.AddInt64(&l.metrics.TotalAcquired, 1)
	for {
		peak := atomic.LoadInt64(&l.metrics.PeakConcurrent)
		if current <= peak {
			return
		}
		if atomic.CompareAndSwapInt64(&l.metrics.PeakConcurrent, peak, current) {
			return
		}
	}
}

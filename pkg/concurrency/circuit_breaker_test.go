package concurrency

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.IsOpen() {
		t.Fatal("circuit should stay closed below the threshold")
	}

	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("circuit should open at the threshold")
	}
	if got := cb.GetConsecutiveFailures(); got != 3 {
		t.Errorf("consecutive failures = %d, want 3", got)
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.IsOpen() {
		t.Error("interleaved success should reset the failure run")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("circuit should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if cb.IsOpen() {
		t.Fatal("circuit should probe half-open after the reset timeout")
	}
	if got := cb.GetState(); got != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", got)
	}

	// A failure while half-open reopens immediately.
	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("failure in half-open should reopen the circuit")
	}

	time.Sleep(20 * time.Millisecond)
	cb.IsOpen() // transition to half-open
	for i := 0; i < halfOpenSuccesses; i++ {
		cb.RecordSuccess()
	}
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state after recovery = %s, want closed", got)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.RecordFailure()
	cb.Reset()

	if cb.IsOpen() {
		t.Error("Reset should close the circuit")
	}
	if got := cb.GetConsecutiveFailures(); got != 0 {
		t.Errorf("failures after Reset = %d, want 0", got)
	}
}

func TestStateString(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" {
		t.Error("unexpected state string representation")
	}
}

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := NewError("LOCK_TIMEOUT", "timed out waiting for lock root-1", ErrLockTimeout)

	msg := e.Error()
	if !strings.Contains(msg, "LOCK_TIMEOUT") {
		t.Errorf("message %q should contain the code", msg)
	}
	if !strings.Contains(msg, "timed out waiting for lock root-1") {
		t.Errorf("message %q should contain the description", msg)
	}

	bare := NewError("FETCH_FAILED", "no luck", nil)
	if strings.Contains(bare.Error(), "<nil>") {
		t.Errorf("message %q should omit the nil cause", bare.Error())
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewError("NETWORK", "request failed", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if e.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestSentinelHelpers(t *testing.T) {
	timeout := NewError("LOCK_TIMEOUT", "waited too long", ErrLockTimeout)
	if !IsLockTimeout(timeout) {
		t.Error("IsLockTimeout should match a wrapped ErrLockTimeout")
	}
	if IsLockTimeout(errors.New("unrelated")) {
		t.Error("IsLockTimeout should not match unrelated errors")
	}

	fetch := NewError("FETCH_FAILED", "retries exhausted", ErrFetchFailed)
	if !IsFetchFailed(fetch) {
		t.Error("IsFetchFailed should match a wrapped ErrFetchFailed")
	}
	if IsFetchFailed(timeout) {
		t.Error("IsFetchFailed should not match a lock timeout")
	}
}

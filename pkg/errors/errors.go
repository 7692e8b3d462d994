package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrLockTimeout indicates that a lock could not be acquired within the
	// configured wait window. The key remains held by its current owner.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrLockNotHeld indicates that a release was attempted on a key that is
	// not currently held. Releases of unheld keys are non-fatal.
	ErrLockNotHeld = errors.New("lock not held")

	// ErrFetchFailed indicates that a remote fetch exhausted its retry budget.
	ErrFetchFailed = errors.New("fetch failed after retries")

	// ErrUsage indicates invalid command-line usage; no pipeline is invoked.
	ErrUsage = errors.New("invalid usage")
)

// Error represents a structured SDK error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new SDK error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsLockTimeout checks if an error is a lock timeout error
func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsFetchFailed checks if an error is a retry-exhaustion error
func IsFetchFailed(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}

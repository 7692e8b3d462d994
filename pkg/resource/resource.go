// Package resource defines the remote resource client consumed by the fetch
// pipeline: one parent lookup returning an ordered list of child references,
// and one call per child reference for its detail record.
//
// Implementations perform exactly one network call per invocation and do not
// retry; retry policy belongs to the pipeline.
package resource

import (
	"context"
	"fmt"
)

// Ref is an opaque reference to a child resource, typically a URL or id
// understood by the transport that produced it.
type Ref string

// Detail is the resolved record for a single child reference.
type Detail struct {
	// Name is the primary display field of the record.
	Name string

	// Fields carries the remaining decoded document verbatim.
	Fields map[string]interface{}
}

// Client fetches the two levels of the resource graph from a remote service.
type Client interface {
	// GetChildren returns the ordered child references of the root resource.
	GetChildren(ctx context.Context, rootID string) ([]Ref, error)

	// GetDetail resolves a single child reference.
	GetDetail(ctx context.Context, ref Ref) (Detail, error)
}

// NetworkError indicates a transport-level failure before any response was
// received.
type NetworkError struct {
	Target string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying transport error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError indicates a response with a non-success status code.
type StatusError struct {
	Target string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.Target)
}

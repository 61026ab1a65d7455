package hass

import (
	"errors"
	"fmt"
)

// Domain-specific errors for upstream calls.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUpstreamStatus is returned when the upstream answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("hass: upstream returned error status")

	// ErrUpstreamUnreachable is returned when no HTTP response was received.
	ErrUpstreamUnreachable = errors.New("hass: upstream unreachable")

	// ErrUpstreamTimeout is returned when the call exceeded the configured timeout.
	ErrUpstreamTimeout = errors.New("hass: upstream timed out")

	// ErrInvalidResponse is returned when the upstream body is not valid JSON
	// or exceeds the size limit.
	ErrInvalidResponse = errors.New("hass: invalid upstream response")

	// ErrInvalidArgument is returned before any request is made when a path
	// segment is empty or would escape its position in the URL.
	ErrInvalidArgument = errors.New("hass: invalid argument")
)

// UpstreamError describes a failed upstream call.
type UpstreamError struct {
	// Op is the client operation, e.g. "get_state".
	Op string

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Message is a human-readable description suitable for RPC clients.
	Message string

	// Err is the sentinel cause (one of the Err* values), possibly wrapping
	// the transport error.
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("hass: %s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

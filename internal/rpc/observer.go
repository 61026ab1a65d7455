package rpc

import (
	"context"
	"time"
)

// Outcome classifies a completed dispatch.
type Outcome string

// Dispatch outcomes.
const (
	OutcomeOK            Outcome = "ok"
	OutcomeProtocolError Outcome = "protocol_error"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeInternalError Outcome = "internal_error"
)

// Call describes one completed dispatch.
type Call struct {
	Method    string
	Params    map[string]any
	RequestID string
	Outcome   Outcome

	// ErrorCode is 0 on success.
	ErrorCode int

	// UpstreamStatus is the HTTP status of a failed upstream call, or 0.
	UpstreamStatus int

	Started  time.Time
	Duration time.Duration
}

// Observer is notified after every dispatch.
//
// ObserveCall runs on the dispatching goroutine, before the reply is
// written, so implementations must not block.
type Observer interface {
	ObserveCall(ctx context.Context, call Call)
}

type requestIDKey struct{}

// ContextWithRequestID returns a context carrying a transport request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func outcomeFor(code int) Outcome {
	switch code {
	case 0:
		return OutcomeOK
	case CodeUpstreamError:
		return OutcomeUpstreamError
	case CodeInternalError:
		return OutcomeInternalError
	default:
		return OutcomeProtocolError
	}
}

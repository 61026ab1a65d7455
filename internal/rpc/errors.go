package rpc

import (
	"errors"
	"fmt"
)

// Error codes used in response envelopes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUpstreamError  = -32000
)

// Domain-specific errors returned by DecodeRequest.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrParse is returned when a frame is not valid JSON.
	ErrParse = errors.New("rpc: parse error")

	// ErrInvalidRequest is returned when a frame is valid JSON but not a
	// valid request envelope.
	ErrInvalidRequest = errors.New("rpc: invalid request")
)

// Error is the error member of a response envelope.
//
// It also implements the error interface so clients can return it directly.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// UpstreamErrorData is the data member attached to CodeUpstreamError when
// the upstream answered with an HTTP status.
type UpstreamErrorData struct {
	Status int `json:"status"`
}

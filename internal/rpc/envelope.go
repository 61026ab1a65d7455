package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version tag carried in every envelope.
const Version = "2.0"

// Request is an inbound request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`

	// ID is echoed back byte-for-byte. Nil when the request carried no id.
	ID json.RawMessage `json:"id,omitempty"`

	Method string `json:"method"`

	// Params holds the decoded params object. Numbers are json.Number when
	// the request came through DecodeRequest.
	Params map[string]any `json:"params,omitempty"`
}

// Response is an outbound response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response.
func NewResult(id json.RawMessage, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// DecodeRequest parses and validates one request envelope.
//
// Rules:
//   - the frame must be a JSON object
//   - method must be a non-empty string
//   - jsonrpc, when present, must be "2.0"
//   - id, when present, must be a string, number or null
//   - params, when present and not null, must be an object
//
// Returns:
//   - *Request: The decoded request. On ErrInvalidRequest it still carries
//     the id when one could be read, so the caller can address its reply.
//   - error: Wrapping ErrParse or ErrInvalidRequest
func DecodeRequest(data []byte) (*Request, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}

	req := &Request{}

	if raw, ok := fields["id"]; ok {
		if !validID(raw) {
			return req, fmt.Errorf("%w: id must be a string, number or null", ErrInvalidRequest)
		}
		req.ID = raw
	}

	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &req.JSONRPC); err != nil || req.JSONRPC != Version {
			return req, fmt.Errorf("%w: jsonrpc must be %q", ErrInvalidRequest, Version)
		}
	} else {
		req.JSONRPC = Version
	}

	raw, ok := fields["method"]
	if !ok {
		return req, fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	if err := json.Unmarshal(raw, &req.Method); err != nil || req.Method == "" {
		return req, fmt.Errorf("%w: method must be a non-empty string", ErrInvalidRequest)
	}

	if raw, ok := fields["params"]; ok && !isNull(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&req.Params); err != nil {
			return req, fmt.Errorf("%w: params must be an object", ErrInvalidRequest)
		}
	}

	return req, nil
}

// DecodeFailure builds the reply a stream transport sends for a frame that
// DecodeRequest rejected. req may be nil.
func DecodeFailure(req *Request, err error) *Response {
	var id json.RawMessage
	if req != nil {
		id = req.ID
	}

	code := CodeInvalidRequest
	message := "Invalid request"
	if errors.Is(err, ErrParse) {
		code = CodeParseError
		message = "Parse error"
		id = nil
	}

	return NewError(id, code, message, err.Error())
}

func validID(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

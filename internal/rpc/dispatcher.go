package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/nerrad567/hassbridge/internal/hass"
	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
)

// Dispatcher routes request envelopes to the upstream API.
//
// Thread Safety:
//   - Dispatch is safe for concurrent use. The method table and options are
//     fixed by NewDispatcher.
type Dispatcher struct {
	upstream  Upstream
	logger    *logging.Logger
	observers []Observer
	now       func() time.Time
	methods   map[string]handlerFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to logging.Default().
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for the get_history window.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithObserver adds an observer notified after every dispatch.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// NewDispatcher creates a Dispatcher calling upstream.
func NewDispatcher(upstream Upstream, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		upstream: upstream,
		logger:   logging.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.methods = d.methodTable()
	return d
}

// Methods returns the supported method names, sorted.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has reports whether method is in the method table.
func (d *Dispatcher) Has(method string) bool {
	_, ok := d.methods[method]
	return ok
}

// Dispatch executes one request and returns its response. The response id
// always equals req.ID. Dispatch never returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	if req == nil {
		return NewError(nil, CodeInvalidRequest, "Invalid request", "empty request")
	}

	started := time.Now()
	upstreamStatus := 0

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic during dispatch",
				"method", req.Method,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp = NewError(req.ID, CodeInternalError, "internal error", nil)
		}
		d.finish(ctx, req, resp, upstreamStatus, started)
	}()

	handler, ok := d.methods[req.Method]
	if !ok {
		return NewError(req.ID, CodeMethodNotFound, "unknown method: "+req.Method, nil)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		rpcErr := d.toError(req.Method, err)
		if data, ok := rpcErr.Data.(UpstreamErrorData); ok {
			upstreamStatus = data.Status
		}
		return &Response{JSONRPC: Version, ID: req.ID, Error: rpcErr}
	}

	if result == nil {
		result = json.RawMessage("null")
	}
	return NewResult(req.ID, result)
}

// toError maps a handler error onto an error object.
func (d *Dispatcher) toError(method string, err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	// A value the upstream client refused to put in a URL is a param problem.
	if errors.Is(err, hass.ErrInvalidArgument) {
		return &Error{Code: CodeInvalidParams, Message: invalidArgumentMessage(err)}
	}

	var upErr *hass.UpstreamError
	if errors.As(err, &upErr) {
		d.logger.Warn("upstream call failed",
			"method", method,
			"status", upErr.Status,
			"error", upErr.Message,
		)
		e := &Error{Code: CodeUpstreamError, Message: upErr.Message}
		if upErr.Status > 0 {
			e.Data = UpstreamErrorData{Status: upErr.Status}
		}
		return e
	}

	d.logger.Warn("upstream call failed", "method", method, "error", err)
	return &Error{Code: CodeUpstreamError, Message: err.Error()}
}

func invalidArgumentMessage(err error) string {
	var upErr *hass.UpstreamError
	if errors.As(err, &upErr) {
		return "invalid parameter: " + upErr.Message
	}
	return "invalid parameter: " + err.Error()
}

// finish logs the call and notifies observers.
func (d *Dispatcher) finish(ctx context.Context, req *Request, resp *Response, upstreamStatus int, started time.Time) {
	call := Call{
		Method:         req.Method,
		Params:         req.Params,
		RequestID:      RequestIDFromContext(ctx),
		UpstreamStatus: upstreamStatus,
		Started:        started,
		Duration:       time.Since(started),
	}
	if resp.Error != nil {
		call.ErrorCode = resp.Error.Code
	}
	call.Outcome = outcomeFor(call.ErrorCode)

	d.logger.Debug("rpc call",
		"method", call.Method,
		"outcome", string(call.Outcome),
		"code", call.ErrorCode,
		"duration_ms", call.Duration.Milliseconds(),
		"request_id", call.RequestID,
	)

	for _, o := range d.observers {
		o.ObserveCall(ctx, call)
	}
}

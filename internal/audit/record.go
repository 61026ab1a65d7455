package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hassbridge/internal/rpc"
)

// unknownMethod replaces method names not in the method table so arbitrary
// client input cannot create new topics or series.
const unknownMethod = "unknown"

// Record is one completed RPC call.
type Record struct {
	ID             string      `json:"id"`
	Method         string      `json:"method"`
	Domain         string      `json:"domain,omitempty"`
	Service        string      `json:"service,omitempty"`
	EntityID       string      `json:"entity_id,omitempty"`
	Outcome        rpc.Outcome `json:"outcome"`
	ErrorCode      int         `json:"error_code,omitempty"`
	UpstreamStatus int         `json:"upstream_status,omitempty"`
	DurationMS     float64     `json:"duration_ms"`
	RequestID      string      `json:"request_id,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// newRecord builds a Record from a dispatcher observation.
func newRecord(call rpc.Call) *Record {
	method := call.Method
	if call.ErrorCode == rpc.CodeMethodNotFound {
		method = unknownMethod
	}

	ts := call.Started
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Record{
		ID:             "call-" + uuid.NewString(),
		Method:         method,
		Domain:         stringParam(call.Params, "domain"),
		Service:        stringParam(call.Params, "service"),
		EntityID:       stringParam(call.Params, "entity_id"),
		Outcome:        call.Outcome,
		ErrorCode:      call.ErrorCode,
		UpstreamStatus: call.UpstreamStatus,
		DurationMS:     float64(call.Duration) / float64(time.Millisecond),
		RequestID:      call.RequestID,
		Timestamp:      ts.UTC(),
	}
}

func stringParam(params map[string]any, name string) string {
	s, _ := params[name].(string)
	return s
}

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// CallMeasurement is the measurement name for RPC call points.
const CallMeasurement = "rpc_calls"

// CallMetric is one completed RPC call.
type CallMetric struct {
	Method  string
	Outcome string

	// ErrorCode is the RPC error code, 0 on success.
	ErrorCode int

	// UpstreamStatus is the HTTP status of a failed upstream call, 0 if none.
	UpstreamStatus int

	Duration  time.Duration
	Timestamp time.Time
}

// WriteCallMetric queues one rpc_calls point. The write is non-blocking;
// failures are reported through the SetOnError callback.
//
// Tags: method, outcome
// Fields: duration_ms, error_code, upstream_status (when non-zero)
func (c *Client) WriteCallMetric(m CallMetric) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newCallPoint(m))
}

func newCallPoint(m CallMetric) *write.Point {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]interface{}{
		"duration_ms": float64(m.Duration) / float64(time.Millisecond),
		"error_code":  int64(m.ErrorCode),
	}
	if m.UpstreamStatus > 0 {
		fields["upstream_status"] = int64(m.UpstreamStatus)
	}

	return write.NewPoint(
		CallMeasurement,
		map[string]string{
			"method":  m.Method,
			"outcome": m.Outcome,
		},
		fields,
		ts,
	)
}

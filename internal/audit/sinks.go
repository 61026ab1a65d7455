package audit

import (
	"context"
	"time"

	"github.com/nerrad567/hassbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hassbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hassbridge/internal/rpc"
)

// EventPublisher is the part of *mqtt.Client the MQTT sink uses.
type EventPublisher interface {
	PublishJSON(topic string, v any) error
	Topics() mqtt.Topics
}

// MQTTSink publishes each record to <prefix>/event/<method>. call_service
// records are also published to <prefix>/event/call_service/<domain>/<service>.
type MQTTSink struct {
	publisher EventPublisher
}

// NewMQTTSink creates a sink publishing through p.
func NewMQTTSink(p EventPublisher) *MQTTSink {
	return &MQTTSink{publisher: p}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Write implements Sink.
func (s *MQTTSink) Write(_ context.Context, rec *Record) error {
	topics := s.publisher.Topics()

	if err := s.publisher.PublishJSON(topics.CallEvent(rec.Method), rec); err != nil {
		return err
	}

	if rec.Method == rpc.MethodCallService && rec.Domain != "" && rec.Service != "" {
		return s.publisher.PublishJSON(topics.ServiceEvent(rec.Domain, rec.Service), rec)
	}
	return nil
}

// MetricWriter is the part of *influxdb.Client the Influx sink uses.
type MetricWriter interface {
	WriteCallMetric(m influxdb.CallMetric)
}

// InfluxSink writes each record as an rpc_calls point.
type InfluxSink struct {
	writer MetricWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w MetricWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Write implements Sink. The underlying write is asynchronous; failures
// surface through the influxdb client's error callback.
func (s *InfluxSink) Write(_ context.Context, rec *Record) error {
	s.writer.WriteCallMetric(influxdb.CallMetric{
		Method:         rec.Method,
		Outcome:        string(rec.Outcome),
		ErrorCode:      rec.ErrorCode,
		UpstreamStatus: rec.UpstreamStatus,
		Duration:       time.Duration(rec.DurationMS * float64(time.Millisecond)),
		Timestamp:      rec.Timestamp,
	})
	return nil
}

// Package audit records completed RPC calls and fans them out to sinks.
//
// A Recorder is registered as an rpc.Observer. Each dispatch produces one
// Record which is queued on a buffered channel and written to every Sink by
// a single drain goroutine. Recording is best-effort: when the queue is full
// the record is dropped with a warning, and sink errors are only logged.
// The reply to the RPC client never waits on a sink.
//
// Sinks:
//   - MQTTSink publishes each record as a JSON event
//   - InfluxSink writes each record as an rpc_calls point
package audit

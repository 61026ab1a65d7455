// Package influxdb records hassbridge call metrics in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Every completed RPC
// call becomes one point:
//
//	rpc_calls,method=get_state,outcome=ok duration_ms=12.4,error_code=0i
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    logger.Warn("influxdb write failed", "error", err)
//	})
//	client.WriteCallMetric(influxdb.CallMetric{Method: "get_state", Outcome: "ok"})
//
// Writes are batched and asynchronous. Close flushes whatever is buffered.
package influxdb

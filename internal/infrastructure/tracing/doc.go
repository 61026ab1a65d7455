// Package tracing configures OpenTelemetry trace export for hassbridge.
//
// Tracing is opt-in. With no endpoint configured Setup registers nothing and
// every span created by the upstream client is a no-op. With an endpoint set,
// spans are batched and exported over OTLP/HTTP:
//
//	shutdown, err := tracing.Setup(ctx, cfg.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
package tracing

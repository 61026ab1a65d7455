// hassbridge exposes the Home Assistant REST API as a small JSON-RPC method
// set.
//
// The bridge runs in one of three modes, selected by HASSBRIDGE_TRANSPORT:
//   - http: JSON-RPC over HTTP POST plus a WebSocket channel (default)
//   - stdio: newline-delimited JSON-RPC on stdin/stdout
//   - mcp: a Model Context Protocol server on stdin/stdout
//
// Every call can optionally be audited to MQTT and InfluxDB, and traced
// through OpenTelemetry.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/hassbridge/internal/api"
	"github.com/nerrad567/hassbridge/internal/audit"
	"github.com/nerrad567/hassbridge/internal/hass"
	"github.com/nerrad567/hassbridge/internal/infrastructure/config"
	"github.com/nerrad567/hassbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hassbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hassbridge/internal/infrastructure/tracing"
	"github.com/nerrad567/hassbridge/internal/mcpserver"
	"github.com/nerrad567/hassbridge/internal/rpc"
	"github.com/nerrad567/hassbridge/internal/stdio"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A missing .env is normal in the add-on image.
	_ = godotenv.Load()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - stdin: Request stream for the stdio transport
//   - stdout: Reply stream for the stdio transport
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	// Load configuration. The default path may be absent; an explicit one may not.
	configPath, explicit := getConfigPath()
	cfg, err := config.Load(configPath, !explicit)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Stream transports own stdout, so logs must go elsewhere.
	if cfg.IsStream() {
		cfg.Logging.Output = "stderr"
	}
	log := logging.New(cfg.Logging, version)
	log.Info("starting hassbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"transport", cfg.Transport,
	)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			log.Error("error shutting down tracing", "error", shutdownErr)
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		log.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	upstream, err := hass.New(hass.Config{
		BaseURL:       cfg.Upstream.URL,
		SupervisorURL: cfg.Upstream.SupervisorURL,
		Token:         cfg.Upstream.Token,
		Timeout:       cfg.Upstream.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}
	log.Info("upstream configured", "url", upstream.BaseURL())

	// Audit sinks are optional and never block startup.
	var sinks []audit.Sink

	mqttClient := connectMQTT(cfg.MQTT, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		sinks = append(sinks, audit.NewMQTTSink(mqttClient))
	}

	influxClient := connectInfluxDB(ctx, cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		sinks = append(sinks, audit.NewInfluxSink(influxClient))
	}

	recorder := audit.NewRecorder(log, sinks)
	defer func() {
		if closeErr := recorder.Close(); closeErr != nil {
			log.Error("error closing audit recorder", "error", closeErr)
		}
	}()

	dispatcher := rpc.NewDispatcher(upstream,
		rpc.WithLogger(log),
		rpc.WithObserver(recorder),
	)

	healthCheck(ctx, log, mqttClient, influxClient)

	transportLog := log.With("transport", cfg.Transport)
	switch cfg.Transport {
	case config.TransportStdio:
		err = stdio.New(dispatcher, transportLog).Serve(ctx, stdin, stdout)
	case config.TransportMCP:
		err = mcpserver.New(dispatcher, version, transportLog).Run(ctx)
	default:
		err = serveHTTP(ctx, cfg, transportLog, dispatcher, mqttClient, influxClient, recorder)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("hassbridge stopped")
	return nil
}

// serveHTTP runs the HTTP and WebSocket listener until ctx is cancelled.
func serveHTTP(ctx context.Context, cfg *config.Config, log *logging.Logger, dispatcher *rpc.Dispatcher,
	mqttClient *mqtt.Client, influxClient *influxdb.Client, recorder *audit.Recorder) error {
	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Dispatcher: dispatcher,
		Audit:      recorder,
		Version:    version,
	}
	// Leave the interfaces nil rather than holding a typed nil pointer.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		server.Close()
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	return nil
}

// connectMQTT connects the audit publisher when enabled.
// Returns nil if MQTT is disabled or the broker is unreachable.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, call events will not be published", "error", err)
		return nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client
}

// connectInfluxDB connects the call-metrics writer when enabled.
// Returns nil if InfluxDB is disabled or unreachable.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, call metrics will not be written", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// getConfigPath returns the configuration file path and whether it was set
// explicitly through HASSBRIDGE_CONFIG.
func getConfigPath() (string, bool) {
	if path := os.Getenv("HASSBRIDGE_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// healthCheck logs the state of the optional audit backends.
// Either client may be nil when disabled.
func healthCheck(ctx context.Context, log *logging.Logger, mqttClient *mqtt.Client, influxClient *influxdb.Client) {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			log.Warn("MQTT health check failed", "error", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}
}

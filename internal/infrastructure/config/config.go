package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
	TransportMCP   = "mcp"
)

// Config is the root configuration structure for hassbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Transport string          `yaml:"transport" env:"HASSBRIDGE_TRANSPORT"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// UpstreamConfig describes the Home Assistant REST API being proxied.
type UpstreamConfig struct {
	// URL is the Home Assistant core base URL; requests go to <URL>/api/<endpoint>.
	URL string `yaml:"url" env:"HA_URL"`

	// SupervisorURL is the Supervisor API base used for add-on information.
	SupervisorURL string `yaml:"supervisor_url" env:"SUPERVISOR_URL"`

	// Token is the bearer token attached to every upstream call.
	// Only ever set via SUPERVISOR_TOKEN in production.
	Token string `yaml:"token" env:"SUPERVISOR_TOKEN"`

	// Timeout bounds every upstream round trip.
	Timeout time.Duration `yaml:"timeout" env:"HASSBRIDGE_UPSTREAM_TIMEOUT"`
}

// APIConfig contains HTTP listener settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"MCP_HOST"`
	Port     int              `yaml:"port" env:"MCP_PORT"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket channel settings.
type WebSocketConfig struct {
	Enabled        bool   `yaml:"enabled" env:"HASSBRIDGE_WEBSOCKET_ENABLED"`
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains settings for the optional call-event publisher.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled" env:"HASSBRIDGE_MQTT_ENABLED"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HASSBRIDGE_MQTT_HOST"`
	Port     int    `yaml:"port" env:"HASSBRIDGE_MQTT_PORT"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"HASSBRIDGE_MQTT_USERNAME"`
	Password string `yaml:"password" env:"HASSBRIDGE_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for the optional call-metrics writer.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"HASSBRIDGE_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"HASSBRIDGE_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"HASSBRIDGE_INFLUXDB_TOKEN"`
	Org           string `yaml:"org" env:"HASSBRIDGE_INFLUXDB_ORG"`
	Bucket        string `yaml:"bucket" env:"HASSBRIDGE_INFLUXDB_BUCKET"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TracingConfig contains OpenTelemetry export settings.
// Tracing is disabled when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"HASSBRIDGE_OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"HASSBRIDGE_LOG_LEVEL"`
	Format string `yaml:"format" env:"HASSBRIDGE_LOG_FORMAT"`
	Output string `yaml:"output" env:"HASSBRIDGE_LOG_OUTPUT"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is an error unless optional is true; the add-on image
// runs from the environment alone.
//
// Parameters:
//   - path: Path to the YAML configuration file
//   - optional: Whether a missing file should fall back to defaults
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string, optional bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		// Defaults and environment only.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The upstream defaults match the Supervisor's internal add-on network.
func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			URL:           "http://supervisor/core",
			SupervisorURL: "http://supervisor",
			Timeout:       10 * time.Second,
		},
		Transport: TransportHTTP,
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			MaxMessageSize: 1 << 20,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "core-mosquitto",
				Port:     1883,
				ClientID: "hassbridge",
			},
			QoS:         1,
			TopicPrefix: "hassbridge",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "hassbridge",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Tracing: TracingConfig{
			ServiceName: "hassbridge",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Only variables that are set replace the current value.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Upstream.Token) == "" {
		errs = append(errs, "upstream.token is required (set SUPERVISOR_TOKEN environment variable)")
	}
	if err := validateBaseURL(c.Upstream.URL); err != nil {
		errs = append(errs, "upstream.url "+err.Error())
	}
	if err := validateBaseURL(c.Upstream.SupervisorURL); err != nil {
		errs = append(errs, "upstream.supervisor_url "+err.Error())
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}

	switch c.Transport {
	case TransportHTTP, TransportStdio, TransportMCP:
	default:
		errs = append(errs, fmt.Sprintf("transport must be one of %s, %s, %s", TransportHTTP, TransportStdio, TransportMCP))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// IsStream reports whether the configured transport speaks over stdin/stdout.
func (c *Config) IsStream() bool {
	return c.Transport == TransportStdio || c.Transport == TransportMCP
}

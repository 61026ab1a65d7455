package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "test-token")
	path := writeConfig(t, `
upstream:
  url: "http://homeassistant.local:8123"
  timeout: 5s
api:
  host: "0.0.0.0"
  port: 9000
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.URL != "http://homeassistant.local:8123" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
	if cfg.Upstream.Timeout != 5*time.Second {
		t.Errorf("Upstream.Timeout = %v, want 5s", cfg.Upstream.Timeout)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 {
		t.Errorf("API = %s:%d, want 0.0.0.0:9000", cfg.API.Host, cfg.API.Port)
	}
	if cfg.Upstream.SupervisorURL != "http://supervisor" {
		t.Errorf("SupervisorURL default not kept, got %q", cfg.Upstream.SupervisorURL)
	}
	if cfg.Upstream.Token != "test-token" {
		t.Errorf("Token = %q, want value from SUPERVISOR_TOKEN", cfg.Upstream.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "test-token")

	if _, err := Load("/nonexistent/path/config.yaml", false); err == nil {
		t.Error("Load() expected error for missing required file, got nil")
	}
}

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "test-token")

	cfg, err := Load("/nonexistent/path/config.yaml", true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Upstream.URL != "http://supervisor/core" {
		t.Errorf("Upstream.URL = %q, want default", cfg.Upstream.URL)
	}
	if cfg.API.Host != "127.0.0.1" || cfg.API.Port != 8099 {
		t.Errorf("API = %s:%d, want 127.0.0.1:8099", cfg.API.Host, cfg.API.Port)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportHTTP)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "test-token")
	path := writeConfig(t, "invalid: [yaml: content")

	if _, err := Load(path, false); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "")

	_, err := Load("/nonexistent/path/config.yaml", true)
	if err == nil {
		t.Fatal("Load() expected error for missing token, got nil")
	}
	if !strings.Contains(err.Error(), "SUPERVISOR_TOKEN") {
		t.Errorf("error should mention SUPERVISOR_TOKEN, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
upstream:
  url: "http://from-file:8123"
api:
  port: 8080
`)
	t.Setenv("SUPERVISOR_TOKEN", "env-token")
	t.Setenv("HA_URL", "http://from-env:8123")
	t.Setenv("MCP_HOST", "0.0.0.0")
	t.Setenv("MCP_PORT", "9999")
	t.Setenv("HASSBRIDGE_TRANSPORT", "stdio")
	t.Setenv("HASSBRIDGE_UPSTREAM_TIMEOUT", "7s")
	t.Setenv("HASSBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HASSBRIDGE_INFLUXDB_TOKEN", "influx-token")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.URL != "http://from-env:8123" {
		t.Errorf("Upstream.URL = %q, want env override", cfg.Upstream.URL)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9999 {
		t.Errorf("API = %s:%d, want 0.0.0.0:9999", cfg.API.Host, cfg.API.Port)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("Transport = %q, want stdio", cfg.Transport)
	}
	if cfg.Upstream.Timeout != 7*time.Second {
		t.Errorf("Upstream.Timeout = %v, want 7s", cfg.Upstream.Timeout)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.InfluxDB.Token != "influx-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "test-token")
	t.Setenv("MCP_PORT", "not-a-number")

	if _, err := Load("/nonexistent/path/config.yaml", true); err == nil {
		t.Error("Load() expected error for non-numeric MCP_PORT, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Upstream.Token = "token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Upstream.Token = "  " },
			wantErr: "upstream.token",
		},
		{
			name:    "relative upstream url",
			mutate:  func(c *Config) { c.Upstream.URL = "supervisor/core" },
			wantErr: "upstream.url",
		},
		{
			name:    "bad supervisor scheme",
			mutate:  func(c *Config) { c.Upstream.SupervisorURL = "ftp://supervisor" },
			wantErr: "upstream.supervisor_url",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Upstream.Timeout = 0 },
			wantErr: "upstream.timeout",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Transport = "carrier-pigeon" },
			wantErr: "transport",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "mqtt qos invalid when enabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:   "mqtt qos ignored when disabled",
			mutate: func(c *Config) { c.MQTT.QoS = 3 },
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsStream(t *testing.T) {
	for transport, want := range map[string]bool{
		TransportHTTP:  false,
		TransportStdio: true,
		TransportMCP:   true,
	} {
		cfg := &Config{Transport: transport}
		if got := cfg.IsStream(); got != want {
			t.Errorf("IsStream() for %q = %v, want %v", transport, got, want)
		}
	}
}

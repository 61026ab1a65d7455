package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the body served at GET /metrics.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Backends      BackendMetrics `json:"backends"`
	Audit         *AuditMetrics  `json:"audit,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket connection statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BackendMetrics reports the optional audit backends. Nil means not configured.
type BackendMetrics struct {
	MQTT     *bool `json:"mqtt"`
	InfluxDB *bool `json:"influxdb"`
}

// AuditMetrics contains audit queue statistics.
type AuditMetrics struct {
	Dropped int64 `json:"dropped"`
}

// handleMetrics returns process metrics. It never contacts the upstream.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Backends: BackendMetrics{
			MQTT:     connected(s.mqtt),
			InfluxDB: connected(s.influx),
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	if s.audit != nil {
		metrics.Audit = &AuditMetrics{Dropped: s.audit.Dropped()}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func connected(c ConnectionStatus) *bool {
	if c == nil {
		return nil
	}
	up := c.IsConnected()
	return &up
}

package rpc

// Identity reported by GET / and GET /health.
const (
	ServerName  = "Home Assistant MCP Server"
	ServiceName = "hassbridge"
	Protocol    = "mcp"
)

// ServerInfo is the capability descriptor served at GET /.
type ServerInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Protocol     string   `json:"protocol"`
	Capabilities []string `json:"capabilities"`
}

// HealthStatus is the body served at GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// Info returns the capability descriptor for this dispatcher.
func (d *Dispatcher) Info(version string) ServerInfo {
	return ServerInfo{
		Name:         ServerName,
		Version:      version,
		Protocol:     Protocol,
		Capabilities: d.Methods(),
	}
}

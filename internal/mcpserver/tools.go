package mcpserver

import "github.com/nerrad567/hassbridge/internal/rpc"

// GetStatesInput is the input for get_states.
type GetStatesInput struct {
	EntityID string `json:"entity_id,omitempty" jsonschema:"optional entity to fetch instead of the full state list"`
}

// GetStateInput is the input for get_state.
type GetStateInput struct {
	EntityID string `json:"entity_id" jsonschema:"entity identifier, e.g. light.living_room"`
}

// CallServiceInput is the input for call_service.
type CallServiceInput struct {
	Domain   string         `json:"domain" jsonschema:"service domain, e.g. light"`
	Service  string         `json:"service" jsonschema:"service name, e.g. turn_on"`
	EntityID string         `json:"entity_id,omitempty" jsonschema:"optional target entity; overrides data.entity_id"`
	Data     map[string]any `json:"data,omitempty" jsonschema:"optional service data"`
}

// GetHistoryInput is the input for get_history.
type GetHistoryInput struct {
	EntityID string   `json:"entity_id" jsonschema:"entity identifier"`
	Hours    *float64 `json:"hours,omitempty" jsonschema:"length of the window ending now, in hours (default 24)"`
}

// NoInput is the input for tools without params.
type NoInput struct{}

func (in GetStatesInput) params() map[string]any {
	if in.EntityID == "" {
		return nil
	}
	return map[string]any{"entity_id": in.EntityID}
}

func (in GetStateInput) params() map[string]any {
	return map[string]any{"entity_id": in.EntityID}
}

func (in CallServiceInput) params() map[string]any {
	p := map[string]any{
		"domain":  in.Domain,
		"service": in.Service,
	}
	if in.EntityID != "" {
		p["entity_id"] = in.EntityID
	}
	if in.Data != nil {
		p["data"] = in.Data
	}
	return p
}

func (in GetHistoryInput) params() map[string]any {
	p := map[string]any{"entity_id": in.EntityID}
	if in.Hours != nil {
		p["hours"] = *in.Hours
	}
	return p
}

func (NoInput) params() map[string]any { return nil }

// registerTools adds one tool per dispatcher method.
func (s *Server) registerTools() {
	addTool[GetStatesInput](s, rpc.MethodGetStates,
		"List the state of every entity, or of one entity when entity_id is given.")
	addTool[GetStateInput](s, rpc.MethodGetState,
		"Get the current state and attributes of one entity.")
	addTool[CallServiceInput](s, rpc.MethodCallService,
		"Call a Home Assistant service, e.g. light.turn_on, with optional target entity and data.")
	addTool[NoInput](s, rpc.MethodGetServices,
		"List the services available in each domain.")
	addTool[NoInput](s, rpc.MethodGetConfig,
		"Get the Home Assistant core configuration.")
	addTool[NoInput](s, rpc.MethodGetAddonInfo,
		"Get information about this add-on from the Supervisor.")
	addTool[GetHistoryInput](s, rpc.MethodGetHistory,
		"Get the state history of one entity over the last hours (default 24).")
}

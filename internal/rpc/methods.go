package rpc

import (
	"context"
	"encoding/json"
	"maps"
	"time"
)

// Method names.
const (
	MethodGetStates    = "get_states"
	MethodGetState     = "get_state"
	MethodCallService  = "call_service"
	MethodGetServices  = "get_services"
	MethodGetConfig    = "get_config"
	MethodGetAddonInfo = "get_addon_info"
	MethodGetHistory   = "get_history"
)

// DefaultHistoryHours is the get_history window when hours is omitted.
const DefaultHistoryHours = 24

// Upstream is the subset of the Home Assistant client the dispatcher calls.
// *hass.Client satisfies it.
type Upstream interface {
	GetStates(ctx context.Context) (json.RawMessage, error)
	GetState(ctx context.Context, entityID string) (json.RawMessage, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error)
	GetServices(ctx context.Context) (json.RawMessage, error)
	GetConfig(ctx context.Context) (json.RawMessage, error)
	GetAddonInfo(ctx context.Context) (json.RawMessage, error)
	GetHistory(ctx context.Context, entityID string, start time.Time) (json.RawMessage, error)
}

// handlerFunc validates params and performs at most one upstream call.
// A *Error return is a protocol error; any other error is an upstream failure.
type handlerFunc func(ctx context.Context, params map[string]any) (json.RawMessage, error)

// methodTable maps method names to handlers. Built once in NewDispatcher.
func (d *Dispatcher) methodTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		MethodGetStates:    d.getStates,
		MethodGetState:     d.getState,
		MethodCallService:  d.callService,
		MethodGetServices:  d.getServices,
		MethodGetConfig:    d.getConfig,
		MethodGetAddonInfo: d.getAddonInfo,
		MethodGetHistory:   d.getHistory,
	}
}

func (d *Dispatcher) getStates(ctx context.Context, params map[string]any) (json.RawMessage, error) {
	entityID, perr := optionalString(params, "entity_id")
	if perr != nil {
		return nil, perr
	}
	if entityID != "" {
		return d.upstream.GetState(ctx, entityID)
	}
	return d.upstream.GetStates(ctx)
}

func (d *Dispatcher) getState(ctx context.Context, params map[string]any) (json.RawMessage, error) {
	values, perr := requiredStrings(params, "entity_id")
	if perr != nil {
		return nil, perr
	}
	return d.upstream.GetState(ctx, values[0])
}

// callService posts data with entity_id merged in. An explicit entity_id
// param replaces one inside data.
func (d *Dispatcher) callService(ctx context.Context, params map[string]any) (json.RawMessage, error) {
	values, perr := requiredStrings(params, "domain", "service")
	if perr != nil {
		return nil, perr
	}
	entityID, perr := optionalString(params, "entity_id")
	if perr != nil {
		return nil, perr
	}
	data, perr := optionalObject(params, "data")
	if perr != nil {
		return nil, perr
	}

	body := make(map[string]any, len(data)+1)
	maps.Copy(body, data)
	if entityID != "" {
		body["entity_id"] = entityID
	}

	return d.upstream.CallService(ctx, values[0], values[1], body)
}

func (d *Dispatcher) getServices(ctx context.Context, _ map[string]any) (json.RawMessage, error) {
	return d.upstream.GetServices(ctx)
}

func (d *Dispatcher) getConfig(ctx context.Context, _ map[string]any) (json.RawMessage, error) {
	return d.upstream.GetConfig(ctx)
}

func (d *Dispatcher) getAddonInfo(ctx context.Context, _ map[string]any) (json.RawMessage, error) {
	return d.upstream.GetAddonInfo(ctx)
}

// getHistory requests the window [now-hours, now] for one entity.
func (d *Dispatcher) getHistory(ctx context.Context, params map[string]any) (json.RawMessage, error) {
	values, perr := requiredStrings(params, "entity_id")
	if perr != nil {
		return nil, perr
	}
	hours, perr := optionalPositiveNumber(params, "hours", DefaultHistoryHours)
	if perr != nil {
		return nil, perr
	}

	start := d.now().Add(-time.Duration(hours * float64(time.Hour))).UTC()
	return d.upstream.GetHistory(ctx, values[0], start)
}

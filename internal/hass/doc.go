// Package hass is the client for the Home Assistant REST API.
//
// It is the only part of hassbridge that talks to the upstream platform.
// A Client is constructed once at startup and shared by every transport;
// it holds the base URLs, the bearer token and one *http.Client, none of
// which change after New returns.
//
// Every call:
//   - targets <base>/api/<endpoint> (add-on info targets the Supervisor API)
//   - carries "Authorization: Bearer <token>"
//   - is bounded by the configured timeout
//   - returns the upstream JSON body verbatim as json.RawMessage
//
// Failures are returned as *UpstreamError, which wraps one of the sentinel
// errors in errors.go:
//
//	states, err := client.GetStates(ctx)
//	var upErr *hass.UpstreamError
//	if errors.As(err, &upErr) && upErr.Status == http.StatusUnauthorized {
//	    // token rejected
//	}
//
// Each call is wrapped in an OpenTelemetry client span named "hass.<operation>".
// Spans are no-ops unless a tracer provider has been configured.
package hass

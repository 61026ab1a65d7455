// Package rpc implements the JSON-RPC dispatch layer of hassbridge.
//
// Every transport (HTTP, WebSocket, stdio, MCP) hands a decoded *Request to
// one shared Dispatcher and writes back the *Response it returns. The
// Dispatcher owns the fixed method table:
//
//	get_states      GET  /api/states                  (entity_id optional)
//	get_state       GET  /api/states/{entity_id}
//	call_service    POST /api/services/{domain}/{service}
//	get_services    GET  /api/services
//	get_config      GET  /api/config
//	get_addon_info  GET  <supervisor>/addons/self/info
//	get_history     GET  /api/history/period/{start}?filter_entity_id=...
//
// Error codes placed in the response envelope:
//
//	-32700  parse error (stream transports only)
//	-32600  invalid request (stream transports only)
//	-32601  unknown method
//	-32602  missing or ill-typed parameter
//	-32603  internal error (recovered panic)
//	-32000  upstream failure; data.status carries the HTTP status if any
//
// A response always echoes the request id. Parameter validation happens
// before any upstream call, and a valid request results in exactly one
// upstream call with no retry.
package rpc

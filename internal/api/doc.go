// Package api implements the HTTP and WebSocket listeners for the bridge.
//
// This package provides:
//   - POST / and POST /rpc: one JSON-RPC request envelope per HTTP request
//   - GET /ws: a WebSocket channel carrying one envelope per text frame
//   - GET /health, GET / and GET /metrics, none of which touch the upstream
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//
// # Error Tiers
//
// A body that is not a valid envelope is rejected with an HTTP error outside
// the envelope (400, or 413 past 1 MB). Content-Type is not checked. Unknown methods, bad params and upstream
// failures are reported inside a 200 response envelope. On the WebSocket
// channel there is no HTTP status, so malformed frames get -32700 or -32600
// replies instead.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil {
//	    return err // address in use, permission denied
//	}
//	defer server.Close()
//
// Every request is dispatched through the same rpc.Dispatcher as the
// stream transports.
package api

// Package mcpserver exposes the dispatcher's methods as Model Context
// Protocol tools.
//
// Each tool has the same name as the method it wraps and a typed input whose
// JSON schema describes the method's params. A tool call is turned into a
// request envelope and runs through the same rpc.Dispatcher as the HTTP and
// stdio listeners, so validation, upstream mapping and the audit trail are
// shared.
package mcpserver

// Package stdio serves request envelopes over a pair of byte streams.
//
// Each input line is one JSON-RPC request envelope and each reply is written
// as one line. Blank lines are skipped. A line that is not JSON gets a -32700
// reply with a null id; a line that is JSON but not a valid envelope gets a
// -32600 reply carrying whatever id could be read.
//
// Requests are handled in arrival order. Stdout carries nothing but replies,
// so logging must go to stderr when this transport is active.
package stdio

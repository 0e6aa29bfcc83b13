// Package mcp implements a client for MCP servers speaking
// newline-delimited JSON-RPC over the stdio of a spawned subprocess.
//
// The package is split into two layers. [StdioTransport] owns the child
// process and exposes line-oriented primitives; [Client] implements the
// protocol on top of it: the initialize handshake, request id assignment
// and verification, and typed tools/list and tools/call operations. The
// protocol carries no multiplexing, so the client keeps at most one
// request in flight and reads exactly one response line per request.
package mcp

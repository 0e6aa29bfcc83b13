package mcp

import "errors"

// Sentinel errors for the failure classes callers distinguish with
// errors.Is. Lower-level causes (I/O message, parse failure, stderr
// diagnostics) are wrapped alongside so operators can tell a dead
// server from a desynchronized one.
var (
	// ErrProtocolViolation marks a malformed response frame or a
	// response whose id does not match the request just sent. The
	// transport carries no pipelining, so any mismatch means the
	// stream is desynchronized and the connection is unusable.
	ErrProtocolViolation = errors.New("mcp: protocol violation")

	// ErrHandshakeFailed marks a failed initialize exchange. The
	// failure is permanent for the client instance; it is never
	// retried internally.
	ErrHandshakeFailed = errors.New("mcp: handshake failed")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("mcp: client closed")
)

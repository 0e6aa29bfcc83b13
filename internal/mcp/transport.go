package mcp

import (
	"context"
	"time"
)

// Transport is the line-oriented boundary to an MCP server. The stdio
// implementation spawns a subprocess; tests substitute fakes. Framing,
// id assignment, and correlation live above this interface in [Client].
type Transport interface {
	// WriteLine writes one frame followed by a newline and flushes.
	WriteLine(ctx context.Context, data []byte) error

	// ReadLine blocks until a full line or EOF. The returned line has
	// its trailing newline stripped; EOF yields an empty string and a
	// nil error. Concurrent callers serialize.
	ReadLine(ctx context.Context) (string, error)

	// PeekStderr attempts a time-bounded read of one stderr line for
	// diagnostics. It returns an empty string when nothing arrives
	// within the timeout. Best effort only.
	PeekStderr(timeout time.Duration) string

	// Close shuts down the transport and releases resources. For
	// stdio transports this terminates the subprocess.
	Close() error
}

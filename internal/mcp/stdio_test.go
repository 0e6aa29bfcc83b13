package mcp

import (
	"context"
	"testing"
	"time"
)

func TestStdioRoundTrip(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "cat"})
	defer tr.Close()

	ctx := context.Background()
	if err := tr.WriteLine(ctx, []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	line, err := tr.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != `{"hello":"world"}` {
		t.Errorf("got %q, want the echoed frame without its newline", line)
	}
}

func TestStdioEOF(t *testing.T) {
	// true exits immediately without writing anything.
	tr := NewStdioTransport(StdioConfig{Command: "true"})
	defer tr.Close()

	line, err := tr.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "" {
		t.Errorf("got %q, want empty string at EOF", line)
	}
}

func TestStdioPeekStderr(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{
		Command: "sh",
		Args:    []string{"-c", `echo "boom" >&2; cat`},
	})
	defer tr.Close()

	// Start the subprocess via a write.
	if err := tr.WriteLine(context.Background(), []byte("ping")); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	msg := tr.PeekStderr(2 * time.Second)
	if msg != "boom" {
		t.Errorf("PeekStderr = %q, want boom", msg)
	}
}

func TestStdioPeekStderrTimeout(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "cat"})
	defer tr.Close()

	if err := tr.WriteLine(context.Background(), []byte("ping")); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	if msg := tr.PeekStderr(50 * time.Millisecond); msg != "" {
		t.Errorf("PeekStderr = %q, want empty on timeout", msg)
	}
}

func TestStdioReadCancellation(t *testing.T) {
	// sleep produces no output, so the read must block until cancel.
	tr := NewStdioTransport(StdioConfig{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
	})
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.ReadLine(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestStdioCloseBeforeStart(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "cat"})
	if err := tr.Close(); err != nil {
		t.Errorf("Close on unstarted transport: %v", err)
	}
}

func TestStdioStartFailure(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "/no/such/binary"})
	defer tr.Close()

	if err := tr.WriteLine(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected start error for missing binary")
	}
}

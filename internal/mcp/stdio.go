package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// StdioConfig configures a stdio MCP transport that communicates with
// a subprocess over stdin/stdout using newline-delimited frames.
type StdioConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments passed to the executable.
	Args []string

	// Env are additional environment variables for the subprocess
	// (format: "KEY=VALUE"). These are appended to the current
	// process environment.
	Env []string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// StdioTransport talks to an MCP server running as a subprocess. Each
// of the three streams has its own section lock so concurrent callers
// serialize rather than interleave bytes. The subprocess is started
// lazily on first use and terminated on Close.
type StdioTransport struct {
	config StdioConfig
	logger *slog.Logger

	// mu guards the process lifecycle and the stream handles.
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *bufio.Reader

	writeMu sync.Mutex
	readMu  sync.Mutex
	errMu   sync.Mutex
}

// NewStdioTransport creates a stdio transport for the given config.
// The subprocess is not started until the first WriteLine or ReadLine.
func NewStdioTransport(cfg StdioConfig) *StdioTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		config: cfg,
		logger: logger,
	}
}

// start launches the subprocess if it is not already running. The
// subprocess lifecycle is independent of call contexts; it survives
// individual request timeouts and is only terminated by Close or by
// an unrecoverable stream error. Caller must hold t.mu.
func (t *StdioTransport) start() error {
	if t.cmd != nil && t.cmd.ProcessState == nil {
		// Process is still running.
		return nil
	}

	t.logger.Info("starting MCP subprocess",
		"command", t.config.Command,
		"args", t.config.Args,
	)

	cmd := exec.Command(t.config.Command, t.config.Args...)
	cmd.Env = append(os.Environ(), t.config.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Stderr is not part of the protocol; it is read only on demand
	// when stdout yields nothing, to give failures a usable message.
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stderrPipe.Close()
		stdout.Close()
		stdin.Close()
		return fmt.Errorf("start subprocess %s: %w", t.config.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = bufio.NewReaderSize(stdout, 1<<20) // 1 MiB buffer for large responses
	t.stderr = bufio.NewReader(stderrPipe)

	t.logger.Info("MCP subprocess started", "pid", cmd.Process.Pid)
	return nil
}

func (t *StdioTransport) ensureStarted() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start()
}

// WriteLine writes one frame followed by a newline. A write error
// terminates the subprocess: the stream is byte-oriented, so a partial
// write leaves it unusable.
func (t *StdioTransport) WriteLine(_ context.Context, data []byte) error {
	if err := t.ensureStarted(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		t.fail()
		return fmt.Errorf("write to subprocess stdin: %w", err)
	}
	return nil
}

// readResult is the outcome of a single line read.
type readResult struct {
	line string
	err  error
}

// ReadLine blocks until a full line arrives on stdout or the stream
// ends. EOF yields an empty string. The read runs in a goroutine so
// that context cancellation can interrupt it; cancellation kills the
// subprocess to unblock the pending read.
func (t *StdioTransport) ReadLine(ctx context.Context) (string, error) {
	if err := t.ensureStarted(); err != nil {
		return "", err
	}

	t.readMu.Lock()
	defer t.readMu.Unlock()

	ch := make(chan readResult, 1)
	go func() {
		line, err := t.stdout.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		t.fail()
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.err != io.EOF {
			t.fail()
			return "", fmt.Errorf("read from subprocess stdout: %w", res.err)
		}
		return strings.TrimRight(res.line, "\r\n"), nil
	}
}

// PeekStderr reads at most one stderr line, waiting no longer than
// timeout. The read goroutine holds the stderr section lock for the
// duration of its read, so a timed-out peek leaves the pending read to
// complete (or block) in the background and later peeks queue behind
// it. Diagnostics only; never returns an error.
func (t *StdioTransport) PeekStderr(timeout time.Duration) string {
	t.mu.Lock()
	stderr := t.stderr
	t.mu.Unlock()
	if stderr == nil {
		return ""
	}

	ch := make(chan string, 1)
	go func() {
		t.errMu.Lock()
		defer t.errMu.Unlock()
		line, err := stderr.ReadString('\n')
		if err != nil && line == "" {
			ch <- ""
			return
		}
		ch <- strings.TrimRight(line, "\r\n")
	}()

	select {
	case line := <-ch:
		return line
	case <-time.After(timeout):
		return ""
	}
}

// Close terminates the subprocess. Cleanup is best effort: if another
// goroutine holds the lifecycle lock, Close skips termination rather
// than block. Under contention this can leak the subprocess until the
// other operation finishes; the alternative is a Close that hangs.
func (t *StdioTransport) Close() error {
	if !t.mu.TryLock() {
		t.logger.Warn("transport busy at close, skipping subprocess cleanup")
		return nil
	}
	defer t.mu.Unlock()

	return t.stop()
}

// stop terminates the subprocess. Caller must hold t.mu.
func (t *StdioTransport) stop() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping MCP subprocess", "pid", t.cmd.Process.Pid)

	// Close stdin to signal the subprocess to exit.
	if t.stdin != nil {
		t.stdin.Close()
	}

	// Wait briefly for graceful exit, then force kill.
	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		t.cmd = nil
		return err
	case <-time.After(5 * time.Second):
		t.logger.Warn("MCP subprocess did not exit gracefully, killing",
			"pid", t.cmd.Process.Pid,
		)
		_ = t.cmd.Process.Kill()
		<-done
		t.cmd = nil
		return nil
	}
}

// fail tears down the process state after a stream error.
func (t *StdioTransport) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	t.cmd = nil
	t.stdin = nil
	t.stdout = nil
	t.stderr = nil
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tasklens/tasklens/internal/buildinfo"
)

const (
	// protocolVersion is the MCP revision this client speaks.
	protocolVersion = "2024-11-05"

	methodInitialize = "initialize"
	notifInitialized = "notifications/initialized"
	methodListTools  = "tools/list"
	methodCallTool   = "tools/call"

	clientName = "tasklens"

	// stderrPeekTimeout bounds how long a failed read waits for a
	// diagnostic line from the server's stderr.
	stderrPeekTimeout = 2 * time.Second
)

type connState int

const (
	stateUninitialized connState = iota
	stateInitializing
	stateReady
	stateClosed
)

// Client is an MCP client over a line-oriented transport. Requests are
// serialized: the protocol pairs each request with exactly one
// response line, so only one request may be in flight at a time. The
// initialize handshake runs lazily before the first request.
type Client struct {
	transport Transport
	logger    *slog.Logger
	nextID    atomic.Int64

	mu         sync.Mutex
	state      connState
	initErr    error
	serverName string
	serverVer  string
}

// NewClient creates a client over the given transport. No I/O happens
// until the first call.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		logger:    logger,
	}
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      serverInfo `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolDescriptor describes one tool exposed by the server.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ContentBlock is one unit of tool output.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Resource any    `json:"resource,omitempty"`
}

// ToolResult is the outcome of a tools/call request.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ServerInfo returns the server name and version reported during the
// handshake, or empty strings if the handshake has not run yet.
func (c *Client) ServerInfo() (name, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverName, c.serverVer
}

// ensureReadyLocked runs the initialize handshake if it has not run
// yet. A failed handshake is sticky: every subsequent call fails with
// the same error instead of retrying against a wedged server.
// Caller must hold c.mu.
func (c *Client) ensureReadyLocked(ctx context.Context) error {
	switch c.state {
	case stateReady:
		return nil
	case stateClosed:
		return ErrClosed
	case stateInitializing:
		// Requests are serialized under c.mu, so an in-flight
		// handshake is only observable after a failure.
		return c.initErr
	}
	if c.initErr != nil {
		return c.initErr
	}
	return c.initializeLocked(ctx)
}

// initializeLocked performs the two-step handshake: an initialize
// request/response exchange followed by the initialized notification.
// Caller must hold c.mu.
func (c *Client) initializeLocked(ctx context.Context) error {
	c.state = stateInitializing

	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: clientInfo{
			Name:    clientName,
			Version: buildinfo.Version,
		},
	}

	raw, err := c.roundTripLocked(ctx, methodInitialize, params)
	if err != nil {
		c.initErr = fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		c.state = stateUninitialized
		return c.initErr
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.initErr = fmt.Errorf("%w: decode initialize result: %v", ErrHandshakeFailed, err)
		c.state = stateUninitialized
		return c.initErr
	}

	notif, err := json.Marshal(NewNotification(notifInitialized, nil))
	if err != nil {
		c.initErr = fmt.Errorf("%w: encode initialized notification: %v", ErrHandshakeFailed, err)
		c.state = stateUninitialized
		return c.initErr
	}
	if err := c.transport.WriteLine(ctx, notif); err != nil {
		c.initErr = fmt.Errorf("%w: send initialized notification: %v", ErrHandshakeFailed, err)
		c.state = stateUninitialized
		return c.initErr
	}

	c.serverName = result.ServerInfo.Name
	c.serverVer = result.ServerInfo.Version
	c.state = stateReady

	c.logger.Info("MCP handshake complete",
		"server", result.ServerInfo.Name,
		"version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion,
	)
	return nil
}

// roundTripLocked sends one request and reads exactly one response
// line. The response id must match the request id; anything else is a
// protocol violation. Caller must hold c.mu.
func (c *Client) roundTripLocked(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := strconv.FormatInt(c.nextID.Add(1), 10)

	req, err := json.Marshal(NewRequest(id, method, params))
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	c.logger.Debug("MCP request", "method", method, "id", id)

	if err := c.transport.WriteLine(ctx, req); err != nil {
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}

	line, err := c.transport.ReadLine(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	if line == "" {
		// The server closed stdout without answering. Check stderr
		// for a parting message before reporting the failure.
		if msg := c.transport.PeekStderr(stderrPeekTimeout); msg != "" {
			return nil, fmt.Errorf("server closed connection during %s: %s", method, msg)
		}
		return nil, fmt.Errorf("server closed connection during %s", method)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response to %s: %v (line: %.200s)",
			ErrProtocolViolation, method, err, line)
	}
	if resp.ID != id {
		return nil, fmt.Errorf("%w: response id %q does not match request id %q",
			ErrProtocolViolation, resp.ID, id)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, resp.Error)
	}
	return resp.Result, nil
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureReadyLocked(ctx); err != nil {
		return nil, err
	}

	raw, err := c.roundTripLocked(ctx, methodListTools, map[string]any{})
	if err != nil {
		return nil, err
	}

	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a named tool with the given arguments. The
// arguments field is omitted from the wire when args is empty.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureReadyLocked(ctx); err != nil {
		return nil, err
	}

	params := map[string]any{"name": name}
	if len(args) > 0 {
		params["arguments"] = args
	}

	raw, err := c.roundTripLocked(ctx, methodCallTool, params)
	if err != nil {
		return nil, err
	}

	var result ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/call result: %w", err)
	}
	return &result, nil
}

// Close shuts down the client and its transport. Safe to call more
// than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return nil
	}
	c.state = stateClosed
	return c.transport.Close()
}

// extractText concatenates the text of all text content blocks.
func extractText(blocks []ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

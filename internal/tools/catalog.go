// Package tools bridges MCP server tools into the function-calling
// schema the chat API understands, and routes the model's tool calls
// back to the server.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tasklens/tasklens/internal/deepseek"
	"github.com/tasklens/tasklens/internal/mcp"
)

// Prefix marks discovered server tools in the model-facing catalog,
// so their names cannot collide with the built-ins.
const Prefix = "mcp_"

// ErrToolNotFound is returned when a call names a tool the catalog
// does not know.
var ErrToolNotFound = errors.New("tool not found")

// MCPClient is the subset of the MCP client the catalog needs.
type MCPClient interface {
	ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error)
}

// Catalog holds the model-facing tool list and executes tool calls
// against the MCP server. The discovered tool list is a snapshot taken
// at build time; servers that change their tools mid-session are not
// supported.
type Catalog struct {
	client MCPClient
	logger *slog.Logger
	tools  []deepseek.Tool
}

// BuildCatalog discovers the server's tools and assembles the full
// catalog: the generic mcp_invoke escape hatch, the task built-ins,
// and every discovered tool under the mcp_ prefix.
func BuildCatalog(ctx context.Context, client MCPClient, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	discovered, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover server tools: %w", err)
	}

	tools := make([]deepseek.Tool, 0, len(builtinTools())+1+len(discovered))
	tools = append(tools, invokeTool())
	tools = append(tools, builtinTools()...)

	for _, d := range discovered {
		tools = append(tools, deepseek.Tool{
			Type: "function",
			Function: deepseek.Function{
				Name:        Prefix + d.Name,
				Description: d.Description,
				Parameters:  normalizeSchema(d.InputSchema),
			},
		})
	}

	logger.Info("tool catalog built",
		"discovered", len(discovered),
		"total", len(tools),
	)

	return &Catalog{
		client: client,
		logger: logger,
		tools:  tools,
	}, nil
}

// Tools returns the model-facing tool list.
func (c *Catalog) Tools() []deepseek.Tool {
	return c.tools
}

// invokeTool is the generic escape hatch: it lets the model call any
// server tool by name, including ones not in the catalog.
func invokeTool() deepseek.Tool {
	return deepseek.Tool{
		Type: "function",
		Function: deepseek.Function{
			Name:        "mcp_invoke",
			Description: "Invoke a tool on a connected MCP server. Use this for tools not covered by the other functions.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"server": map[string]any{
						"type":        "string",
						"description": "Name of the MCP server to invoke the tool on",
					},
					"tool": map[string]any{
						"type":        "string",
						"description": "Name of the tool to invoke",
					},
					"arguments": map[string]any{
						"type":        "object",
						"description": "Arguments to pass to the tool",
					},
				},
				"required": []string{"server", "tool"},
			},
		},
	}
}

// builtinTools are the task-management shortcuts the model can call
// without knowing the server's tool names.
func builtinTools() []deepseek.Tool {
	return []deepseek.Tool{
		{
			Type: "function",
			Function: deepseek.Function{
				Name:        "list_tasks",
				Description: "List todo tasks, optionally filtered by assignee, priority, status, or tag.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"assignee": map[string]any{
							"type":        "string",
							"description": "Filter tasks by assignee",
						},
						"priority": map[string]any{
							"type":        "string",
							"description": "Filter tasks by priority (e.g. high, medium, low)",
						},
						"status": map[string]any{
							"type":        "string",
							"description": "Filter tasks by status (e.g. pending, in_progress, completed)",
						},
						"tag": map[string]any{
							"type":        "string",
							"description": "Filter tasks by tag",
						},
					},
					"required": []string{},
				},
			},
		},
		{
			Type: "function",
			Function: deepseek.Function{
				Name:        "get_task",
				Description: "Get the full details of a single task by its id.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{
							"type":        "string",
							"description": "The task id",
						},
					},
					"required": []string{"id"},
				},
			},
		},
		{
			Type: "function",
			Function: deepseek.Function{
				Name:        "task_stats",
				Description: "Get aggregate statistics over all tasks: counts by status, priority, and tag.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		},
	}
}

// normalizeSchema coerces a discovered input schema into the object
// schema shape the chat API requires. Servers that publish no schema,
// or a non-object one, get an empty object schema.
func normalizeSchema(schema any) map[string]any {
	m, ok := schema.(map[string]any)
	if !ok || m == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		}
	}
	return m
}

// Execute routes one tool call to the server and shapes the result
// for the model. Unparsable argument strings are treated as empty
// arguments.
func (c *Catalog) Execute(ctx context.Context, name, rawArgs string) (map[string]any, error) {
	args := parseArgs(rawArgs)

	c.logger.Debug("executing tool", "tool", name)

	switch name {
	case "list_tasks":
		filtered := map[string]any{}
		for _, key := range []string{"assignee", "priority", "status", "tag"} {
			if v, ok := args[key].(string); ok && v != "" {
				filtered[key] = v
			}
		}
		return c.callServer(ctx, "list_tasks", filtered)

	case "get_task":
		id, ok := args["id"].(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("get_task requires an id argument")
		}
		return c.callServer(ctx, "get_task", map[string]any{"id": id})

	case "task_stats":
		return c.callServer(ctx, "task_stats", map[string]any{})

	case "mcp_invoke":
		tool, ok := args["tool"].(string)
		if !ok || tool == "" {
			return nil, fmt.Errorf("mcp_invoke requires a tool argument")
		}
		nested, _ := args["arguments"].(map[string]any)
		if nested == nil {
			nested = map[string]any{}
		}
		return c.callServer(ctx, tool, nested)
	}

	if strings.HasPrefix(name, Prefix) {
		return c.callServer(ctx, strings.TrimPrefix(name, Prefix), args)
	}

	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

// parseArgs decodes the model's raw argument string, falling back to
// an empty map on malformed JSON.
func parseArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// callServer invokes a server tool and shapes the result payload.
func (c *Catalog) callServer(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	result, err := c.client.CallTool(ctx, tool, args)
	if err != nil {
		return nil, err
	}
	return shapeResult(tool, result), nil
}

// shapeResult converts the server's content blocks into the payload
// handed back to the model. Text blocks that parse as JSON are
// embedded as structured values; everything else keeps its block
// shape. A single content item is unwrapped from its array.
func shapeResult(tool string, result *mcp.ToolResult) map[string]any {
	items := make([]any, 0, len(result.Content))
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			var parsed any
			if err := json.Unmarshal([]byte(block.Text), &parsed); err == nil {
				items = append(items, parsed)
			} else {
				items = append(items, map[string]any{
					"type": "text",
					"text": block.Text,
				})
			}
		case "image", "audio":
			items = append(items, map[string]any{
				"type":      block.Type,
				"data":      block.Data,
				"mime_type": block.MimeType,
			})
		case "resource":
			items = append(items, map[string]any{
				"type":     block.Type,
				"resource": block.Resource,
			})
		default:
			items = append(items, map[string]any{
				"type": block.Type,
			})
		}
	}

	var content any
	switch len(items) {
	case 0:
		content = nil
	case 1:
		content = items[0]
	default:
		content = items
	}

	payload := map[string]any{
		"content":   content,
		"tool_name": tool,
		"success":   !result.IsError,
	}
	if result.IsError {
		payload["error"] = "tool execution reported an error"
	}
	return payload
}

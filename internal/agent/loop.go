// Package agent runs the tool-calling conversation loop: it sends the
// user's prompt to the model, executes any tool calls the model makes,
// feeds the results back, and repeats until the model answers in
// plain text or the iteration limit is reached.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tasklens/tasklens/internal/deepseek"
)

const (
	// maxToolIterations bounds the number of request/tool-call rounds
	// in one conversation. The limit keeps a confused model from
	// looping on tool calls forever.
	maxToolIterations = 5

	// iterationLimitMessage is returned when the model is still
	// calling tools after the final iteration.
	iterationLimitMessage = "Analysis completed with maximum tool call iterations reached."

	systemPrompt = "You are an AI assistant that can analyze tasks and manage todo lists. " +
		"You have access to tools for querying task information. Use them when you need " +
		"current task data to answer the user's question."
)

// ChatClient sends chat completion requests.
type ChatClient interface {
	Chat(ctx context.Context, req *deepseek.ChatRequest) (*deepseek.ChatResponse, error)
}

// ToolExecutor runs one named tool call with raw JSON arguments.
type ToolExecutor interface {
	Tools() []deepseek.Tool
	Execute(ctx context.Context, name, rawArgs string) (map[string]any, error)
}

// Result is the outcome of a conversation.
type Result struct {
	// Content is the model's final text answer, or the iteration
	// limit message when the limit was hit.
	Content string

	// ToolCalls counts the tool invocations made during the
	// conversation.
	ToolCalls int
}

// Loop drives tool-calling conversations against a chat client.
type Loop struct {
	chat     ChatClient
	executor ToolExecutor
	logger   *slog.Logger

	model       string
	temperature float64
	maxTokens   int
}

// NewLoop creates a conversation loop. An empty model selects the
// default chat model.
func NewLoop(chat ChatClient, executor ToolExecutor, model string, logger *slog.Logger) *Loop {
	if model == "" {
		model = deepseek.DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		chat:        chat,
		executor:    executor,
		logger:      logger,
		model:       model,
		temperature: 0.7,
		maxTokens:   4000,
	}
}

// Run executes one conversation starting from the user prompt.
func (l *Loop) Run(ctx context.Context, userPrompt string) (*Result, error) {
	messages := []deepseek.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	toolCalls := 0

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		req := &deepseek.ChatRequest{
			Model:       l.model,
			Messages:    messages,
			Tools:       l.executor.Tools(),
			ToolChoice:  "auto",
			Temperature: l.temperature,
			MaxTokens:   l.maxTokens,
		}

		resp, err := l.chat.Chat(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("chat iteration %d: %w", iteration+1, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("chat iteration %d: response contains no choices", iteration+1)
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			l.logger.Debug("conversation finished",
				"iterations", iteration+1,
				"tool_calls", toolCalls,
			)
			return &Result{Content: msg.Content, ToolCalls: toolCalls}, nil
		}

		messages = append(messages, msg.AssistantMessage())

		for _, call := range msg.ToolCalls {
			toolCalls++
			payload := l.executeCall(ctx, call)

			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode tool result for %s: %w", call.Function.Name, err)
			}
			messages = append(messages, deepseek.Message{
				Role:       "tool",
				Content:    string(encoded),
				ToolCallID: call.ID,
			})
		}
	}

	l.logger.Warn("tool iteration limit reached", "tool_calls", toolCalls)
	return &Result{Content: iterationLimitMessage, ToolCalls: toolCalls}, nil
}

// executeCall runs one tool call. Execution errors become a failure
// payload instead of aborting the conversation; the model sees the
// error text and can recover or answer without the tool.
func (l *Loop) executeCall(ctx context.Context, call deepseek.ToolCall) map[string]any {
	name := call.Function.Name
	l.logger.Info("tool call", "tool", name)

	payload, err := l.executor.Execute(ctx, name, call.Function.Arguments)
	if err != nil {
		l.logger.Warn("tool call failed", "tool", name, "error", err)
		return map[string]any{
			"tool_name": name,
			"success":   false,
			"error":     err.Error(),
		}
	}
	return payload
}

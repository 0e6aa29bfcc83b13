package deepseek

import "encoding/json"

// Tool is a function tool offered to the model.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes one callable function: its name, a description
// the model reads, and a JSON Schema for its parameters.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is the model's request to invoke a tool. Arguments arrive
// as a raw JSON string, exactly as the model produced them.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its raw arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn in the conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ChatRequest is the request body for a chat completion.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// ChatResponse is the response body for a chat completion. Only the
// fields the agent consumes are mapped.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant turn inside a choice. Content may
// be absent when the model only emits tool calls.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage reports token accounting for the request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AssistantMessage converts a response message back into a request
// message so the turn can be appended to the conversation.
func (m ResponseMessage) AssistantMessage() Message {
	return Message{
		Role:      "assistant",
		Content:   m.Content,
		ToolCalls: m.ToolCalls,
	}
}

// ParseArguments decodes the raw argument string into a map. Unparsable
// arguments yield an empty map rather than an error: the model
// occasionally emits malformed JSON and the tools treat missing
// arguments as defaults.
func (fc FunctionCall) ParseArguments() map[string]any {
	args := map[string]any{}
	if fc.Arguments == "" {
		return args
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

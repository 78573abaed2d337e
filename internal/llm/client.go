// Package llm defines the chat-completion client used by the conversation
// engine, backed by an OpenAI-compatible API with native function calling.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool choice strategies.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// Message is a single turn sent to or received from the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // assistant turns only
	ToolCallID string     `json:"toolCallId,omitempty"` // tool turns only
}

// ToolCall is a model request to invoke a tool. Arguments is the raw JSON
// string emitted by the model; it is validated downstream before dispatch.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes one callable tool for the model.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"schema"` // JSON Schema for the arguments object
}

// CompletionRequest is the input to one Complete call.
type CompletionRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"toolChoice,omitempty"`
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// CompletionResponse is the model's answer: either content, tool calls,
// or both (some models emit preamble text alongside tool calls).
type CompletionResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"toolCalls,omitempty"`
	FinishReason string     `json:"finishReason,omitempty"`
	Usage        Usage      `json:"usage"`
}

// Usage tracks token consumption for one or more calls.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Client is the interface the conversation engine programs against.
type Client interface {
	// Complete sends a request and returns the full response. Transient
	// failures are retried internally; the returned error is always a
	// *ProviderError once retries are exhausted.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name for logging.
	Name() string
}

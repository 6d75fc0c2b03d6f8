// Package llms provides the model-invocation capability consumed by agents.
// Providers are treated as black boxes: given a conversation and a tool
// catalog they produce text, tool calls, or an error. All providers speak the
// OpenAI-compatible chat completions API; gateway deployments are reached via
// base URL override and extra routing headers.
package llms

import (
	"errors"
)

// ErrInvocation marks failures of the underlying model capability
// (transport, quota, malformed response). Deadline expiry is reported as
// context.DeadlineExceeded, not as ErrInvocation.
var ErrInvocation = errors.New("model invocation failed")

// Message roles follow the chat completions convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition advertises a callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Generation is the outcome of one model invocation.
// Either Text is the final answer, or ToolCalls asks for tool results to be
// fed back before the next invocation.
type Generation struct {
	Text      string
	ToolCalls []ToolCall
	Tokens    int
}

// Package tools provides the deterministic capabilities agents may invoke
// mid-generation: arithmetic evaluation, web search, and page extraction.
// Tools are registered once at startup and are stateless; every invocation is
// a pure function of its arguments plus, for network tools, the remote
// response.
package tools

import (
	"context"
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type Tool interface {
	GetInfo() ToolInfo

	// Execute runs the tool and returns its result as text.
	// Malformed arguments fail with ErrInvalidArguments; failures of the
	// capability itself fail with ErrEvaluation.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

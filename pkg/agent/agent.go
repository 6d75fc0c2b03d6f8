// Copyright 2025 Emre Kaya
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agent binds a persona (role, goal, backstory) to a model provider
// and a fixed tool set. An agent executes one task at a time: it assembles
// the role prompt, runs the generation loop, resolves tool calls, and returns
// the final text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/llms"
	"github.com/emrekaya/advisor/pkg/logger"
	"github.com/emrekaya/advisor/pkg/tools"
)

// ErrToolInvocation marks an agent execution that failed because tool calls
// could not be brought to a useful conclusion within the round budget.
var ErrToolInvocation = errors.New("tool invocation failed")

// Task is the unit of work handed to an agent: what to do, and what shape the
// answer should take.
type Task struct {
	ID             string
	Description    string
	ExpectedOutput string
}

// Agent executes tasks against one provider with one fixed tool set.
// Stateless between executions, safe for concurrent use.
type Agent struct {
	name     string
	cfg      *config.AgentConfig
	provider llms.Provider
	toolSet  map[string]tools.Tool
	defs     []llms.ToolDefinition
	logger   *slog.Logger
}

// New resolves the agent's tool grants against the registry and returns a
// ready agent. Tool resolution happens here, once, so a missing tool fails at
// startup rather than mid-run.
func New(name string, cfg *config.AgentConfig, provider llms.Provider, toolRegistry *tools.Registry) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent config cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("agent %q: provider cannot be nil", name)
	}

	toolSet := make(map[string]tools.Tool, len(cfg.Tools))
	defs := make([]llms.ToolDefinition, 0, len(cfg.Tools))
	for _, toolName := range cfg.Tools {
		tool, exists := toolRegistry.Get(toolName)
		if !exists {
			return nil, fmt.Errorf("agent %q references unknown tool %q", name, toolName)
		}
		toolSet[toolName] = tool
		defs = append(defs, toDefinition(tool.GetInfo()))
	}

	return &Agent{
		name:     name,
		cfg:      cfg,
		provider: provider,
		toolSet:  toolSet,
		defs:     defs,
		logger:   logger.GetLogger().With("agent", name),
	}, nil
}

// Name returns the registry name of the agent.
func (a *Agent) Name() string { return a.name }

// Execute runs one task to completion. contextText carries the outputs of the
// task's dependencies; it may be empty for root tasks.
//
// Deadline expiry is returned as context.DeadlineExceeded. Provider failures
// carry llms.ErrInvocation. Tool failures are first fed back to the model as
// text so it can self-correct; if the round budget runs out before the model
// produces a final answer, the execution fails with ErrToolInvocation.
func (a *Agent) Execute(ctx context.Context, task Task, contextText string) (string, error) {
	messages := []llms.Message{
		{Role: llms.RoleSystem, Content: a.systemPrompt()},
		{Role: llms.RoleUser, Content: a.taskPrompt(task, contextText)},
	}

	// MaxToolRounds bounds tool executions; the final iteration only accepts
	// a text answer.
	for round := 0; round <= a.cfg.MaxToolRounds; round++ {
		gen, err := a.provider.Generate(ctx, messages, a.defs)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return "", context.DeadlineExceeded
			}
			return "", fmt.Errorf("agent %q: %w", a.name, err)
		}

		if len(gen.ToolCalls) == 0 {
			a.logger.Debug("task completed", "task", task.ID, "rounds", round, "tokens", gen.Tokens)
			return gen.Text, nil
		}
		if round == a.cfg.MaxToolRounds {
			break
		}

		messages = append(messages, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   gen.Text,
			ToolCalls: gen.ToolCalls,
		})

		for _, call := range gen.ToolCalls {
			result, err := a.invokeTool(ctx, call)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				// Fed back as text: the model gets one or more chances to
				// repair its arguments or pick another tool.
				a.logger.Warn("tool call failed", "task", task.ID, "tool", call.Name, "error", err)
				result = fmt.Sprintf("Error: %v", err)
			}
			messages = append(messages, llms.Message{
				Role:       llms.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("agent %q: %w: no final answer after %d tool rounds",
		a.name, ErrToolInvocation, a.cfg.MaxToolRounds)
}

func (a *Agent) invokeTool(ctx context.Context, call llms.ToolCall) (string, error) {
	tool, exists := a.toolSet[call.Name]
	if !exists {
		return "", fmt.Errorf("tool %q is not available to this agent", call.Name)
	}
	return tool.Execute(ctx, call.Arguments)
}

func (a *Agent) systemPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.\n", a.cfg.Role)
	if a.cfg.Goal != "" {
		fmt.Fprintf(&sb, "\nYour goal: %s\n", a.cfg.Goal)
	}
	if a.cfg.Backstory != "" {
		fmt.Fprintf(&sb, "\nBackground: %s\n", a.cfg.Backstory)
	}
	if len(a.defs) > 0 {
		sb.WriteString("\nUse the available tools when they help you produce an accurate answer. Answer in plain text once you have everything you need.\n")
	}
	return sb.String()
}

func (a *Agent) taskPrompt(task Task, contextText string) string {
	var sb strings.Builder
	sb.WriteString(task.Description)
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "\n\nExpected output: %s", task.ExpectedOutput)
	}
	if contextText != "" {
		fmt.Fprintf(&sb, "\n\nContext from earlier work:\n%s", contextText)
	}
	return sb.String()
}

func toDefinition(info tools.ToolInfo) llms.ToolDefinition {
	properties := make(map[string]any, len(info.Parameters))
	var required []string
	for _, p := range info.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	parameters := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		parameters["required"] = required
	}

	return llms.ToolDefinition{
		Name:        info.Name,
		Description: info.Description,
		Parameters:  parameters,
	}
}

// Package testutils provides scripted model providers for exercising agents
// and pipelines without a live backend.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/emrekaya/advisor/pkg/llms"
)

type scriptStep struct {
	gen *llms.Generation
	err error
}

// ScriptedProvider replays a fixed sequence of generations and records every
// conversation it was asked to complete. Safe for concurrent use.
type ScriptedProvider struct {
	mu    sync.Mutex
	model string
	steps []scriptStep

	// Calls holds a copy of the message history of each Generate invocation,
	// in order.
	Calls [][]llms.Message
}

func NewScriptedProvider(model string) *ScriptedProvider {
	return &ScriptedProvider{model: model}
}

// Reply enqueues a plain text generation.
func (p *ScriptedProvider) Reply(text string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, scriptStep{gen: &llms.Generation{Text: text}})
	return p
}

// CallTool enqueues a generation that requests one tool invocation.
func (p *ScriptedProvider) CallTool(id, name string, args map[string]any) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, scriptStep{gen: &llms.Generation{
		ToolCalls: []llms.ToolCall{{ID: id, Name: name, Arguments: args}},
	}})
	return p
}

// Fail enqueues a generation that returns err.
func (p *ScriptedProvider) Fail(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, scriptStep{err: err})
	return p
}

func (p *ScriptedProvider) Generate(ctx context.Context, messages []llms.Message, _ []llms.ToolDefinition) (*llms.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	recorded := make([]llms.Message, len(messages))
	copy(recorded, messages)
	p.Calls = append(p.Calls, recorded)

	if len(p.steps) == 0 {
		return nil, fmt.Errorf("%w: script exhausted after %d calls", llms.ErrInvocation, len(p.Calls))
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.gen, nil
}

func (p *ScriptedProvider) ModelName() string { return p.model }

// CallCount returns the number of Generate invocations so far.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// FuncProvider adapts a function to the Provider interface. Useful when the
// reply depends on the conversation, e.g. one pipeline run exercising several
// tasks through a single provider.
type FuncProvider struct {
	Model string
	Fn    func(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (*llms.Generation, error)
}

func (p *FuncProvider) Generate(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (*llms.Generation, error) {
	return p.Fn(ctx, messages, tools)
}

func (p *FuncProvider) ModelName() string {
	if p.Model == "" {
		return "func-provider"
	}
	return p.Model
}

// BlockingProvider blocks until the context is cancelled, then returns
// ctx.Err(). Used to exercise deadline handling.
type BlockingProvider struct {
	Model string
}

func (p *BlockingProvider) Generate(ctx context.Context, _ []llms.Message, _ []llms.ToolDefinition) (*llms.Generation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *BlockingProvider) ModelName() string {
	if p.Model == "" {
		return "blocking-provider"
	}
	return p.Model
}

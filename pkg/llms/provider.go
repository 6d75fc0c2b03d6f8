package llms

import (
	"context"
	"fmt"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/registry"
)

// Provider is the model-invocation capability.
type Provider interface {
	// Generate performs one non-streaming model request.
	// The supplied context carries the remaining run deadline; providers must
	// return promptly with ctx.Err() when it expires.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (*Generation, error)

	ModelName() string
}

// Registry holds named providers, populated once at startup.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

// CreateFromConfig instantiates a provider from config and registers it.
func (r *Registry) CreateFromConfig(name string, cfg *config.LLMConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("llm name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}

	provider, err := NewOpenAIProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider %q: %w", name, err)
	}

	if err := r.Register(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register llm provider: %w", err)
	}

	return provider, nil
}

// GetProvider returns a registered provider by name.
func (r *Registry) GetProvider(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("llm provider %q not found", name)
	}
	return provider, nil
}

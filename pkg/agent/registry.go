package agent

import (
	"fmt"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/llms"
	"github.com/emrekaya/advisor/pkg/registry"
	"github.com/emrekaya/advisor/pkg/tools"
)

// Registry holds named agents, populated once at startup.
type Registry struct {
	*registry.BaseRegistry[*Agent]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[*Agent](),
	}
}

// CreateFromConfig resolves an agent's provider and tools and registers it.
func (r *Registry) CreateFromConfig(name string, cfg *config.AgentConfig, llmRegistry *llms.Registry, toolRegistry *tools.Registry) (*Agent, error) {
	provider, err := llmRegistry.GetProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	a, err := New(name, cfg, provider, toolRegistry)
	if err != nil {
		return nil, err
	}

	if err := r.Register(name, a); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}
	return a, nil
}

// GetAgent returns a registered agent by name.
func (r *Registry) GetAgent(name string) (*Agent, error) {
	a, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("agent %q not found", name)
	}
	return a, nil
}

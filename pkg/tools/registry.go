package tools

import (
	"context"
	"fmt"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/registry"
)

// Registry holds named tools. Read-only after startup, safe for concurrent
// use across runs.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
	}
}

// RegisterTool adds a tool under its declared name.
func (r *Registry) RegisterTool(tool Tool) error {
	name := tool.GetInfo().Name
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.Get(name); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	return r.Register(name, tool)
}

// Invoke executes a registered tool by name.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool.Execute(ctx, args)
}

// CreateFromConfig instantiates a tool from its config entry and registers it.
func (r *Registry) CreateFromConfig(name string, cfg *config.ToolConfig) error {
	var tool Tool
	switch cfg.Type {
	case "calculator":
		tool = NewCalculatorTool(name)
	case "search":
		tool = NewSearchTool(name, cfg)
	case "scrape":
		tool = NewScrapeTool(name, cfg)
	default:
		return fmt.Errorf("unsupported tool type: %s (supported: calculator, search, scrape)", cfg.Type)
	}
	return r.RegisterTool(tool)
}

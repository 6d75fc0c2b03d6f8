package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrekaya/advisor/pkg/config"
)

func TestRegistry_RegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(NewCalculatorTool("calculator")))

	got, err := r.Invoke(context.Background(), "calculator", map[string]any{"expression": "2 + 3 * 4"})
	require.NoError(t, err)
	assert.Equal(t, "14", got)
}

func TestRegistry_DuplicateTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(NewCalculatorTool("calculator")))

	err := r.RegisterTool(NewCalculatorTool("calculator"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_CreateFromConfig(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.CreateFromConfig("calculator", &config.ToolConfig{Type: "calculator"}))
	require.NoError(t, r.CreateFromConfig("search", &config.ToolConfig{Type: "search", APIKey: "k", Timeout: 5}))
	require.NoError(t, r.CreateFromConfig("scrape", &config.ToolConfig{Type: "scrape", APIKey: "k", Timeout: 5}))

	assert.Equal(t, 3, r.Count())
	assert.Equal(t, []string{"calculator", "search", "scrape"}, r.Names())

	err := r.CreateFromConfig("weird", &config.ToolConfig{Type: "quantum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported tool type")
}

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/llms"
	"github.com/emrekaya/advisor/pkg/testutils"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{Name: "test-pipeline"},
		LLMs: map[string]*config.LLMConfig{
			"primary": {Model: "gpt-4o"},
		},
		Tools: map[string]*config.ToolConfig{
			"calculator": {Type: "calculator"},
		},
		Agents: map[string]*config.AgentConfig{
			"researcher": {Role: "Researcher", LLM: "primary", Tools: []string{"calculator"}},
			"writer":     {Role: "Writer", LLM: "primary"},
		},
		Tasks: []*config.TaskConfig{
			{ID: "research", Description: "Research the topic.", Agent: "researcher"},
			{ID: "write", Description: "Write it up.", Agent: "writer", DependsOn: []string{"research"}},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestNew_BuildsEverything(t *testing.T) {
	provider := testutils.NewScriptedProvider("gpt-4o")
	r, err := New(testConfig(), WithProvider("primary", provider))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Graph().Len())
	assert.Equal(t, []string{"research", "write"}, r.Graph().Order())
	assert.Equal(t, "test-pipeline", r.Config().Pipeline.Name)
}

func TestNew_GraphErrorsAreFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Tasks[1].DependsOn = []string{"ghost"}

	_, err := New(cfg, WithProvider("primary", testutils.NewScriptedProvider("m")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRuntime_Run(t *testing.T) {
	provider := testutils.NewScriptedProvider("gpt-4o").
		Reply("research findings").
		Reply("final write-up")

	cfg := testConfig()
	cfg.Reports.Dir = t.TempDir()

	r, err := New(cfg, WithProvider("primary", provider))
	require.NoError(t, err)

	got, err := r.Run(context.Background(), "tell me about bonds")
	require.NoError(t, err)
	assert.Equal(t, "final write-up", got)
}

func TestRuntime_RunFailure(t *testing.T) {
	provider := testutils.NewScriptedProvider("gpt-4o") // empty script fails
	r, err := New(testConfig(), WithProvider("primary", provider))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, llms.ErrInvocation)
}

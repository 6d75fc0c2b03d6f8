package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
pipeline:
  name: "Agentic Investment Advisor"

llms:
  gemini-pro:
    model: gemini-2.5-pro
    api_key: test-key

tools:
  calculator:
    type: calculator

agents:
  advisor:
    role: "Financial Advisor"
    goal: "Advise"
    llm: gemini-pro
    tools: [calculator]

tasks:
  - id: advise
    description: "Produce advice"
    agent: advisor
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "Agentic Investment Advisor", cfg.Pipeline.Name)
	require.Contains(t, cfg.LLMs, "gemini-pro")
	assert.Equal(t, "gemini-2.5-pro", cfg.LLMs["gemini-pro"].Model)
	require.Len(t, cfg.Tasks, 1)
	assert.Equal(t, "advise", cfg.Tasks[0].ID)
}

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeoutSeconds, cfg.Server.TimeoutSeconds)
	assert.Equal(t, DefaultMaxConcurrentRuns, cfg.Server.MaxConcurrentRuns)
	assert.Equal(t, DefaultOutputSeparator, cfg.Pipeline.OutputSeparator)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, DefaultMaxToolRounds, cfg.Agents["advisor"].MaxToolRounds)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLMs["gemini-pro"].BaseURL)
	assert.Equal(t, 0.1, cfg.LLMs["gemini-pro"].Temperature)
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ADVISOR_TEST_KEY", "secret-from-env")

	yaml := `
llms:
  main:
    model: gpt-4o
    api_key: ${ADVISOR_TEST_KEY}
    base_url: ${ADVISOR_TEST_MISSING:-https://gateway.example.com/v1}
agents:
  a:
    role: r
    goal: g
    llm: main
tasks:
  - id: t1
    description: d
    agent: a
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "secret-from-env", cfg.LLMs["main"].APIKey)
	assert.Equal(t, "https://gateway.example.com/v1", cfg.LLMs["main"].BaseURL)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no agents",
			yaml:    "tasks:\n  - id: t\n    description: d\n    agent: a\n",
			wantErr: "at least one agent",
		},
		{
			name: "unknown llm reference",
			yaml: `
agents:
  a:
    role: r
    goal: g
    llm: nope
tasks:
  - id: t
    description: d
    agent: a
`,
			wantErr: "unknown llm",
		},
		{
			name: "unknown tool reference",
			yaml: `
llms:
  main:
    model: m
agents:
  a:
    role: r
    goal: g
    llm: main
    tools: [ghost]
tasks:
  - id: t
    description: d
    agent: a
`,
			wantErr: "unknown tool",
		},
		{
			name: "duplicate task id",
			yaml: `
llms:
  main:
    model: m
agents:
  a:
    role: r
    goal: g
    llm: main
tasks:
  - id: t
    description: d
    agent: a
  - id: t
    description: d2
    agent: a
`,
			wantErr: "duplicate task id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

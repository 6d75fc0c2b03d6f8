// Package config holds the declarative definitions the advisor pipeline is
// built from: LLM providers, tools, agent roles, the task list, guardrails,
// and the server settings. Configuration is loaded once at startup; every
// loading or validation failure is fatal, no run proceeds on a bad config.
package config

import (
	"fmt"
)

// Config is the root configuration.
type Config struct {
	Pipeline   PipelineConfig             `yaml:"pipeline" mapstructure:"pipeline" json:"pipeline"`
	LLMs       map[string]*LLMConfig      `yaml:"llms" mapstructure:"llms" json:"llms"`
	Tools      map[string]*ToolConfig     `yaml:"tools" mapstructure:"tools" json:"tools,omitempty"`
	Agents     map[string]*AgentConfig    `yaml:"agents" mapstructure:"agents" json:"agents"`
	Tasks      []*TaskConfig              `yaml:"tasks" mapstructure:"tasks" json:"tasks"`
	Guardrails GuardrailsConfig           `yaml:"guardrails" mapstructure:"guardrails" json:"guardrails,omitempty"`
	Server     ServerConfig               `yaml:"server" mapstructure:"server" json:"server"`
	Reports    ReportsConfig              `yaml:"reports" mapstructure:"reports" json:"reports,omitempty"`
}

// PipelineConfig names the pipeline and shapes its final output.
type PipelineConfig struct {
	Name string `yaml:"name" mapstructure:"name" json:"name"`

	// OutputSeparator joins terminal task outputs when the graph has more
	// than one terminal task.
	OutputSeparator string `yaml:"output_separator" mapstructure:"output_separator" json:"output_separator,omitempty"`
}

// LLMConfig describes one model binding. All providers speak the
// OpenAI-compatible chat completions API; gateway routing (base URL plus
// extra headers) covers hosted and proxied deployments.
type LLMConfig struct {
	Model       string            `yaml:"model" mapstructure:"model" json:"model"`
	BaseURL     string            `yaml:"base_url" mapstructure:"base_url" json:"base_url,omitempty"`
	APIKey      string            `yaml:"api_key" mapstructure:"api_key" json:"api_key,omitempty"`
	Headers     map[string]string `yaml:"headers" mapstructure:"headers" json:"headers,omitempty"`
	Temperature float64           `yaml:"temperature" mapstructure:"temperature" json:"temperature,omitempty"`
	MaxTokens   int               `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout" mapstructure:"timeout" json:"timeout,omitempty"`
}

// ToolConfig describes one tool instance.
type ToolConfig struct {
	Type       string `yaml:"type" mapstructure:"type" json:"type"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url" json:"base_url,omitempty"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results" json:"max_results,omitempty"`

	// Timeout is the per-call timeout in seconds.
	Timeout    int `yaml:"timeout" mapstructure:"timeout" json:"timeout,omitempty"`
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" json:"max_retries,omitempty"`
}

// AgentConfig describes one role-bound agent.
type AgentConfig struct {
	Role      string   `yaml:"role" mapstructure:"role" json:"role"`
	Goal      string   `yaml:"goal" mapstructure:"goal" json:"goal"`
	Backstory string   `yaml:"backstory" mapstructure:"backstory" json:"backstory,omitempty"`
	LLM       string   `yaml:"llm" mapstructure:"llm" json:"llm"`
	Tools     []string `yaml:"tools" mapstructure:"tools" json:"tools,omitempty"`

	// MaxToolRounds bounds the tool-call loop within one agent execution.
	MaxToolRounds int `yaml:"max_tool_rounds" mapstructure:"max_tool_rounds" json:"max_tool_rounds,omitempty"`
}

// TaskConfig describes one unit of work in the pipeline.
// Task order in the list is the declaration order used for deterministic
// scheduling and output assembly.
type TaskConfig struct {
	ID             string   `yaml:"id" mapstructure:"id" json:"id"`
	Description    string   `yaml:"description" mapstructure:"description" json:"description"`
	ExpectedOutput string   `yaml:"expected_output" mapstructure:"expected_output" json:"expected_output,omitempty"`
	Agent          string   `yaml:"agent" mapstructure:"agent" json:"agent"`
	DependsOn      []string `yaml:"depends_on" mapstructure:"depends_on" json:"depends_on,omitempty"`
}

// GuardrailsConfig screens incoming queries before a run starts.
type GuardrailsConfig struct {
	ProhibitedKeywords []string `yaml:"prohibited_keywords" mapstructure:"prohibited_keywords" json:"prohibited_keywords,omitempty"`
	BreakMessage       string   `yaml:"break_message" mapstructure:"break_message" json:"break_message,omitempty"`
}

// ServerConfig holds the request boundary settings.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host" json:"host,omitempty"`
	Port int    `yaml:"port" mapstructure:"port" json:"port,omitempty"`

	// TimeoutSeconds is the wall-clock budget for one pipeline run.
	TimeoutSeconds float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds,omitempty"`

	// MaxConcurrentRuns bounds simultaneous pipeline runs (admission control).
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs" json:"max_concurrent_runs,omitempty"`
}

// ReportsConfig controls persistence of assembled reports.
type ReportsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir" json:"dir,omitempty"`
}

const (
	DefaultTimeoutSeconds    = 780.0
	DefaultMaxConcurrentRuns = 4
	DefaultMaxToolRounds     = 5
	DefaultOutputSeparator   = "\n\n---\n\n"
)

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMConfig)
	}
	if c.Tools == nil {
		c.Tools = make(map[string]*ToolConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}

	if c.Pipeline.OutputSeparator == "" {
		c.Pipeline.OutputSeparator = DefaultOutputSeparator
	}

	for _, llm := range c.LLMs {
		if llm.BaseURL == "" {
			llm.BaseURL = "https://api.openai.com/v1"
		}
		if llm.Temperature == 0 {
			llm.Temperature = 0.1
		}
		if llm.MaxTokens == 0 {
			llm.MaxTokens = 4096
		}
		if llm.Timeout == 0 {
			llm.Timeout = 120
		}
	}

	for _, tool := range c.Tools {
		if tool.Timeout == 0 {
			tool.Timeout = 30
		}
		if tool.MaxRetries == 0 {
			tool.MaxRetries = 2
		}
	}

	for _, agent := range c.Agents {
		if agent.MaxToolRounds == 0 {
			agent.MaxToolRounds = DefaultMaxToolRounds
		}
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Server.MaxConcurrentRuns == 0 {
		c.Server.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}

	if c.Guardrails.BreakMessage == "" {
		c.Guardrails.BreakMessage = "Request contains prohibited content."
	}
}

// Validate checks referential integrity between sections. Graph-level
// validation (dependency resolution, cycles) belongs to the pipeline builder.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}

	for name, agent := range c.Agents {
		if agent.Role == "" {
			return fmt.Errorf("agent %q: role is required", name)
		}
		if agent.LLM == "" {
			return fmt.Errorf("agent %q: llm is required", name)
		}
		if _, ok := c.LLMs[agent.LLM]; !ok {
			return fmt.Errorf("agent %q references unknown llm %q", name, agent.LLM)
		}
		for _, toolName := range agent.Tools {
			if _, ok := c.Tools[toolName]; !ok {
				return fmt.Errorf("agent %q references unknown tool %q", name, toolName)
			}
		}
	}

	for name, llm := range c.LLMs {
		if llm.Model == "" {
			return fmt.Errorf("llm %q: model is required", name)
		}
	}

	for name, tool := range c.Tools {
		if tool.Type == "" {
			return fmt.Errorf("tool %q: type is required", name)
		}
	}

	seen := make(map[string]struct{}, len(c.Tasks))
	for i, task := range c.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task at index %d: id is required", i)
		}
		if _, dup := seen[task.ID]; dup {
			return fmt.Errorf("duplicate task id %q", task.ID)
		}
		seen[task.ID] = struct{}{}
		if task.Description == "" {
			return fmt.Errorf("task %q: description is required", task.ID)
		}
		if task.Agent == "" {
			return fmt.Errorf("task %q: agent is required", task.ID)
		}
	}

	return nil
}

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

// Package runtime is the composition root: it turns a validated Config into
// live registries, builds the task graph once, and exposes one operation,
// running the pipeline for a query. Every construction failure here is
// fatal; a process with a half-built runtime must not serve requests.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/emrekaya/advisor/pkg/agent"
	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/llms"
	"github.com/emrekaya/advisor/pkg/logger"
	"github.com/emrekaya/advisor/pkg/pipeline"
	"github.com/emrekaya/advisor/pkg/report"
	"github.com/emrekaya/advisor/pkg/tools"
)

// Runtime owns the read-only pipeline machinery shared by all runs.
type Runtime struct {
	cfg      *config.Config
	llms     *llms.Registry
	tools    *tools.Registry
	agents   *agent.Registry
	graph    *pipeline.Graph
	executor *pipeline.Executor
	reports  *report.Sink
	logger   *slog.Logger
}

// Option adjusts runtime construction.
type Option func(*options)

type options struct {
	providers map[string]llms.Provider
}

// WithProvider pre-registers a model provider under a config name instead of
// constructing it from the LLM section. Used by tests and embedders.
func WithProvider(name string, p llms.Provider) Option {
	return func(o *options) {
		o.providers[name] = p
	}
}

// New builds all registries and the task graph from cfg. cfg must already be
// validated; graph-level problems (unknown dependencies, cycles, unknown
// agents) are still detected here and returned as fatal errors.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &options{providers: make(map[string]llms.Provider)}
	for _, opt := range opts {
		opt(o)
	}

	r := &Runtime{
		cfg:     cfg,
		llms:    llms.NewRegistry(),
		tools:   tools.NewRegistry(),
		agents:  agent.NewRegistry(),
		reports: report.NewSink(cfg.Reports.Dir),
		logger:  logger.GetLogger().With("component", "runtime"),
	}

	for _, name := range sortedKeys(o.providers) {
		if err := r.llms.Register(name, o.providers[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(cfg.LLMs) {
		if _, exists := r.llms.Get(name); exists {
			continue
		}
		if _, err := r.llms.CreateFromConfig(name, cfg.LLMs[name]); err != nil {
			return nil, err
		}
	}

	for _, name := range sortedKeys(cfg.Tools) {
		if err := r.tools.CreateFromConfig(name, cfg.Tools[name]); err != nil {
			return nil, err
		}
	}

	for _, name := range sortedKeys(cfg.Agents) {
		if _, err := r.agents.CreateFromConfig(name, cfg.Agents[name], r.llms, r.tools); err != nil {
			return nil, err
		}
	}

	graph, err := pipeline.Build(cfg.Tasks, r.agents)
	if err != nil {
		return nil, err
	}
	r.graph = graph
	r.executor = pipeline.NewExecutor(graph)

	r.logger.Info("runtime ready",
		"pipeline", cfg.Pipeline.Name,
		"agents", r.agents.Count(),
		"tools", r.tools.Count(),
		"tasks", graph.Len())

	return r, nil
}

// Run executes the pipeline once for a query and returns the assembled
// report. The caller owns the deadline via ctx. Report persistence is
// best-effort and never fails the run.
func (r *Runtime) Run(ctx context.Context, query string) (string, error) {
	run, err := r.executor.Execute(ctx, query)
	if err != nil {
		return "", err
	}

	result, err := pipeline.Assemble(r.graph, run, r.cfg.Pipeline.OutputSeparator)
	if err != nil {
		return "", err
	}

	if _, err := r.reports.Save(result); err != nil {
		r.logger.Warn("failed to persist report", "error", err)
	}

	return result, nil
}

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config { return r.cfg }

// Graph returns the immutable task graph.
func (r *Runtime) Graph() *pipeline.Graph { return r.graph }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

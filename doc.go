// Package advisor runs a declarative pipeline of cooperating LLM agents.
//
// A pipeline is defined entirely in YAML: model bindings, tools, role-bound
// agents, and a list of tasks with dependencies. The engine builds a task
// graph once at startup, then executes it per request: tasks run in
// dependency order, independent tasks run concurrently, each task's output
// feeds the context of its dependents, and the whole run is bounded by one
// wall-clock deadline.
//
// Start the server:
//
//	advisor serve --config configs/advisor.yaml
//
// Or run the pipeline once from the command line:
//
//	advisor run --config configs/advisor.yaml "How should I invest 10,000 EUR?"
//
// The packages compose bottom-up:
//
//	import (
//	    "github.com/emrekaya/advisor/pkg/config"
//	    "github.com/emrekaya/advisor/pkg/runtime"
//	    "github.com/emrekaya/advisor/pkg/server"
//	)
//
//	cfg, _ := config.Load("configs/advisor.yaml")
//	rt, _ := runtime.New(cfg)
//	_ = server.New(cfg, rt).Start(ctx)
package advisor

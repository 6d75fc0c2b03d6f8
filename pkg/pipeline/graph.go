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

// Package pipeline turns the declared task list into a validated dependency
// graph and executes it: tasks run in dependency order, each agent call
// receives the outputs of its dependencies as context, and the whole run is
// bounded by one deadline. The graph is built once at startup; runs share it
// read-only.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emrekaya/advisor/pkg/agent"
	"github.com/emrekaya/advisor/pkg/config"
)

// Graph validation failures. All are fatal at startup, no run proceeds on a
// bad graph.
var (
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrUnknownAgent      = errors.New("unknown agent")
)

// Node is one task bound to its executing agent.
type Node struct {
	Task  *config.TaskConfig
	Agent *agent.Agent

	index      int
	dependents []string
}

// Graph is the immutable task graph plus its precomputed topological order.
type Graph struct {
	nodes     map[string]*Node
	declared  []string
	order     []string
	terminals []string
}

// Build validates the task list against the agent registry and produces the
// graph. Dependency identifiers must resolve (ErrUnknownDependency), the
// relation must be acyclic (ErrCyclicDependency, with the offending cycle in
// the error), and every assigned agent must exist (ErrUnknownAgent). The
// topological order breaks ties by declaration order so scheduling is
// deterministic.
func Build(tasks []*config.TaskConfig, agents *agent.Registry) (*Graph, error) {
	g := &Graph{
		nodes:    make(map[string]*Node, len(tasks)),
		declared: make([]string, 0, len(tasks)),
	}

	for i, task := range tasks {
		a, exists := agents.Get(task.Agent)
		if !exists {
			return nil, fmt.Errorf("task %q: %w: %s", task.ID, ErrUnknownAgent, task.Agent)
		}
		g.nodes[task.ID] = &Node{Task: task, Agent: a, index: i}
		g.declared = append(g.declared, task.ID)
	}

	for _, id := range g.declared {
		node := g.nodes[id]
		for _, dep := range node.Task.DependsOn {
			upstream, exists := g.nodes[dep]
			if !exists {
				return nil, fmt.Errorf("task %q: %w: %s", id, ErrUnknownDependency, dep)
			}
			upstream.dependents = append(upstream.dependents, id)
		}
	}

	order, err := g.topologicalOrder()
	if err != nil {
		return nil, err
	}
	g.order = order

	for _, id := range g.declared {
		if len(g.nodes[id].dependents) == 0 {
			g.terminals = append(g.terminals, id)
		}
	}

	return g, nil
}

// topologicalOrder runs Kahn's algorithm, always draining the ready set in
// declaration order.
func (g *Graph) topologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id, node := range g.nodes {
		indegree[id] = len(node.Task.DependsOn)
	}

	order := make([]string, 0, len(g.nodes))
	placed := make(map[string]bool, len(g.nodes))
	for len(order) < len(g.nodes) {
		next := ""
		for _, id := range g.declared {
			if !placed[id] && indegree[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, g.cycleError()
		}

		placed[next] = true
		order = append(order, next)
		for _, dependent := range g.nodes[next].dependents {
			indegree[dependent]--
		}
	}

	return order, nil
}

// cycleError reconstructs one cycle as a witness. Depth-first from the first
// declared task, dependencies visited in declared order, so the reported
// cycle is stable across runs.
func (g *Graph) cycleError() error {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)
	color := make(map[string]int, len(g.nodes))

	var stack []string
	var witness []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range g.nodes[id].Task.DependsOn {
			switch color[dep] {
			case grey:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				witness = append(append([]string{}, stack[start:]...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.declared {
		if color[id] == white && visit(id) {
			break
		}
	}

	if len(witness) == 0 {
		return ErrCyclicDependency
	}
	return fmt.Errorf("%w: %s", ErrCyclicDependency, strings.Join(witness, " -> "))
}

// Node returns the node for a task id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Order returns the topological order of task ids.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Terminals returns the ids of tasks with no dependents, in declared order.
// Their outputs form the final report.
func (g *Graph) Terminals() []string {
	out := make([]string, len(g.terminals))
	copy(out, g.terminals)
	return out
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

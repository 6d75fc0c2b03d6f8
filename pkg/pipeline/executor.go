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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emrekaya/advisor/pkg/agent"
	"github.com/emrekaya/advisor/pkg/logger"
)

// RunState is the lifecycle of one pipeline run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	RunTimedOut  RunState = "timed_out"
)

// TaskStatus is the lifecycle of one task within a run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// TaskResult is the outcome of one task. Written exactly once by the task
// that owns it; readers are gated on completion, so a dependent task always
// observes the full final text.
type TaskResult struct {
	TaskID      string
	Status      TaskStatus
	Text        string
	CompletedAt time.Time
}

// Run is the state of one pipeline invocation: the original query, the
// per-task results, and the terminal state. Runs never share state.
type Run struct {
	Query      string
	State      RunState
	Results    map[string]*TaskResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// slot is the producer/consumer hand-off for one task's result. done is
// closed after result is fully written.
type slot struct {
	done   chan struct{}
	result *TaskResult
}

// Executor walks the graph in dependency order under a single deadline.
// Stateless across runs, safe for concurrent use.
type Executor struct {
	graph  *Graph
	logger *slog.Logger
}

func NewExecutor(graph *Graph) *Executor {
	return &Executor{
		graph:  graph,
		logger: logger.GetLogger().With("component", "executor"),
	}
}

// Execute runs every task once. The supplied context carries the run
// deadline; each agent call receives it directly, so later tasks see a
// shrinking budget, never the full original duration.
//
// Independent tasks run concurrently. The first failure cancels the group:
// no further task starts, in-flight calls are cancelled cooperatively. The
// returned Run is always non-nil and carries the terminal state; the error
// mirrors Run.Err for non-succeeded runs.
func (e *Executor) Execute(ctx context.Context, query string) (*Run, error) {
	run := &Run{
		Query:     query,
		State:     RunRunning,
		Results:   make(map[string]*TaskResult, e.graph.Len()),
		StartedAt: time.Now(),
	}

	var mu sync.Mutex
	slots := make(map[string]*slot, e.graph.Len())
	for _, id := range e.graph.Order() {
		slots[id] = &slot{done: make(chan struct{})}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range e.graph.Order() {
		node, _ := e.graph.Node(id)
		g.Go(func() error {
			return e.runTask(gctx, node, query, slots, &mu, run)
		})
	}

	err := g.Wait()
	run.FinishedAt = time.Now()

	switch {
	case err == nil:
		run.State = RunSucceeded
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled) && errors.Is(ctx.Err(), context.DeadlineExceeded):
		run.State = RunTimedOut
		run.Err = context.DeadlineExceeded
	default:
		run.State = RunFailed
		run.Err = err
	}

	e.logger.Info("run finished",
		"state", string(run.State),
		"tasks", len(run.Results),
		"duration", run.FinishedAt.Sub(run.StartedAt))

	return run, run.Err
}

func (e *Executor) runTask(ctx context.Context, node *Node, query string, slots map[string]*slot, mu *sync.Mutex, run *Run) error {
	id := node.Task.ID

	// Gate on every declared dependency. Slots are closed only after a
	// successful write; a failed dependency cancels ctx instead.
	for _, dep := range node.Task.DependsOn {
		select {
		case <-slots[dep].done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mu.Lock()
	run.Results[id] = &TaskResult{TaskID: id, Status: TaskRunning}
	mu.Unlock()

	e.logger.Debug("task started", "task", id, "agent", node.Agent.Name())

	contextText := e.assembleContext(query, node, slots)
	text, err := node.Agent.Execute(ctx, agent.Task{
		ID:             id,
		Description:    node.Task.Description,
		ExpectedOutput: node.Task.ExpectedOutput,
	}, contextText)

	if err != nil {
		mu.Lock()
		run.Results[id].Status = TaskFailed
		run.Results[id].CompletedAt = time.Now()
		mu.Unlock()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("task %q: %w", id, err)
	}

	result := &TaskResult{
		TaskID:      id,
		Status:      TaskSucceeded,
		Text:        text,
		CompletedAt: time.Now(),
	}
	mu.Lock()
	run.Results[id] = result
	mu.Unlock()

	s := slots[id]
	s.result = result
	close(s.done)

	e.logger.Debug("task succeeded", "task", id)
	return nil
}

// assembleContext concatenates the original query with the dependency
// outputs, in the order the dependencies were declared. Called only after
// every dependency slot is closed.
func (e *Executor) assembleContext(query string, node *Node, slots map[string]*slot) string {
	parts := make([]string, 0, len(node.Task.DependsOn)+1)
	parts = append(parts, query)
	for _, dep := range node.Task.DependsOn {
		parts = append(parts, slots[dep].result.Text)
	}
	return strings.Join(parts, "\n\n")
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/llms"
	"github.com/emrekaya/advisor/pkg/testutils"
)

// echoProvider answers every task with "out-<id>" and records the user
// prompt each task saw. Task descriptions follow the "task:<id>" convention
// from the graph tests.
type echoProvider struct {
	mu      sync.Mutex
	prompts map[string]string
}

func newEchoProvider() *echoProvider {
	return &echoProvider{prompts: make(map[string]string)}
}

func (p *echoProvider) Generate(ctx context.Context, messages []llms.Message, _ []llms.ToolDefinition) (*llms.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user := messages[len(messages)-1].Content
	id := taskIDFromPrompt(user)

	p.mu.Lock()
	p.prompts[id] = user
	p.mu.Unlock()

	return &llms.Generation{Text: "out-" + id}, nil
}

func (p *echoProvider) ModelName() string { return "echo" }

func (p *echoProvider) prompt(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts[id]
}

func (p *echoProvider) sawTask(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.prompts[id]
	return ok
}

func taskIDFromPrompt(user string) string {
	rest := strings.TrimPrefix(user, "task:")
	if i := strings.IndexAny(rest, "\n "); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func TestExecutor_LinearChain(t *testing.T) {
	provider := newEchoProvider()
	agents := newAgentRegistry(t, provider, "worker")
	g, err := Build([]*config.TaskConfig{
		task("a", "worker"),
		task("b", "worker", "a"),
		task("c", "worker", "b"),
	}, agents)
	require.NoError(t, err)

	run, err := NewExecutor(g).Execute(context.Background(), "the query")
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.State)

	// Each task's context carries the query and its dependency's full text.
	assert.Contains(t, provider.prompt("a"), "the query")
	assert.Contains(t, provider.prompt("b"), "the query")
	assert.Contains(t, provider.prompt("b"), "out-a")
	assert.Contains(t, provider.prompt("c"), "out-b")

	report, err := Assemble(g, run, "\n---\n")
	require.NoError(t, err)
	assert.Equal(t, "out-c", report)
}

func TestExecutor_DiamondContextOrder(t *testing.T) {
	provider := newEchoProvider()
	agents := newAgentRegistry(t, provider, "worker")
	g, err := Build([]*config.TaskConfig{
		task("profile", "worker"),
		task("research", "worker", "profile"),
		task("sentiment", "worker", "profile"),
		task("report", "worker", "research", "sentiment"),
	}, agents)
	require.NoError(t, err)

	run, err := NewExecutor(g).Execute(context.Background(), "advise me")
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.State)

	// The report task sees the query first, then both branch outputs in the
	// order they were declared as dependencies.
	prompt := provider.prompt("report")
	qi := strings.Index(prompt, "advise me")
	ri := strings.Index(prompt, "out-research")
	si := strings.Index(prompt, "out-sentiment")
	require.True(t, qi >= 0 && ri >= 0 && si >= 0, "prompt: %q", prompt)
	assert.Less(t, qi, ri)
	assert.Less(t, ri, si)

	for id, result := range run.Results {
		assert.Equal(t, TaskSucceeded, result.Status, "task %s", id)
		assert.False(t, result.CompletedAt.IsZero(), "task %s", id)
	}
}

func TestExecutor_IndependentTasksRunConcurrently(t *testing.T) {
	// research and sentiment block until both are in flight. A serial
	// executor would deadlock here; the timeout converts that into a failure.
	var barrier sync.WaitGroup
	barrier.Add(2)

	provider := &testutils.FuncProvider{Fn: func(ctx context.Context, messages []llms.Message, _ []llms.ToolDefinition) (*llms.Generation, error) {
		user := messages[len(messages)-1].Content
		id := taskIDFromPrompt(user)
		if id == "research" || id == "sentiment" {
			barrier.Done()
			if !waitTimeout(&barrier, 2*time.Second) {
				return nil, errors.New("sibling task never started")
			}
		}
		return &llms.Generation{Text: "out-" + id}, nil
	}}

	agents := newAgentRegistry(t, provider, "worker")
	g, err := Build([]*config.TaskConfig{
		task("profile", "worker"),
		task("research", "worker", "profile"),
		task("sentiment", "worker", "profile"),
		task("report", "worker", "research", "sentiment"),
	}, agents)
	require.NoError(t, err)

	run, err := NewExecutor(g).Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.State)

	report, err := Assemble(g, run, "sep")
	require.NoError(t, err)
	assert.Equal(t, "out-report", report)
}

func TestExecutor_FailureAbortsDownstream(t *testing.T) {
	boom := errors.New("model exploded")
	provider := &testutils.FuncProvider{Fn: func(ctx context.Context, messages []llms.Message, _ []llms.ToolDefinition) (*llms.Generation, error) {
		user := messages[len(messages)-1].Content
		if taskIDFromPrompt(user) == "b" {
			return nil, boom
		}
		return &llms.Generation{Text: "ok"}, nil
	}}

	agents := newAgentRegistry(t, provider, "worker")
	g, err := Build([]*config.TaskConfig{
		task("a", "worker"),
		task("b", "worker", "a"),
		task("c", "worker", "b"),
	}, agents)
	require.NoError(t, err)

	run, err := NewExecutor(g).Execute(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RunFailed, run.State)
	assert.ErrorIs(t, run.Err, boom)

	assert.Equal(t, TaskFailed, run.Results["b"].Status)
	// c never started: its slot was gated on b, which never closed.
	_, started := run.Results["c"]
	assert.False(t, started)

	_, err = Assemble(g, run, "sep")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteRun)
}

func TestExecutor_Timeout(t *testing.T) {
	agents := newAgentRegistry(t, &testutils.BlockingProvider{}, "worker")
	g, err := Build([]*config.TaskConfig{
		task("a", "worker"),
		task("b", "worker", "a"),
	}, agents)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	start := time.Now()
	run, err := NewExecutor(g).Execute(ctx, "q")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, RunTimedOut, run.State)
	assert.Less(t, elapsed, 2*time.Second, "executor must return promptly after the deadline")

	_, err = Assemble(g, run, "sep")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteRun)
}

func TestAssemble_MultipleTerminals(t *testing.T) {
	provider := newEchoProvider()
	agents := newAgentRegistry(t, provider, "worker")
	g, err := Build([]*config.TaskConfig{
		task("root", "worker"),
		task("left", "worker", "root"),
		task("right", "worker", "root"),
	}, agents)
	require.NoError(t, err)

	run, err := NewExecutor(g).Execute(context.Background(), "q")
	require.NoError(t, err)

	report, err := Assemble(g, run, "\n\n---\n\n")
	require.NoError(t, err)
	assert.Equal(t, "out-left\n\n---\n\nout-right", report)
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

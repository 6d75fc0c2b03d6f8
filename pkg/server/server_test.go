package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrekaya/advisor/pkg/config"
)

// stubRunner answers with a canned result or error and can block to exercise
// admission control.
type stubRunner struct {
	mu      sync.Mutex
	result  string
	err     error
	block   chan struct{}
	queries []string
}

func (s *stubRunner) Run(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

func serverConfig() *config.Config {
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{Name: "advisor"},
		Guardrails: config.GuardrailsConfig{
			ProhibitedKeywords: []string{"insider trading"},
		},
		Server: config.ServerConfig{
			TimeoutSeconds:    5,
			MaxConcurrentRuns: 2,
		},
	}
	cfg.SetDefaults()
	return cfg
}

func postRun(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/crew/run", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec, env
}

func TestServer_RunSuccess(t *testing.T) {
	runner := &stubRunner{result: "the report"}
	srv := New(serverConfig(), runner)

	rec, env := postRun(t, srv.Handler(), `{"query": "how should I invest 10000?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "the report", env.Result)
	assert.Nil(t, env.Error)
	assert.NotEmpty(t, env.RequestID)
	assert.False(t, env.Timestamp.IsZero())
	assert.GreaterOrEqual(t, env.ProcessingTimeMS, 0.0)
	assert.Equal(t, []string{"how should I invest 10000?"}, runner.queries)
}

func TestServer_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not json"},
		{name: "blank query", body: `{"query": "   "}`},
		{name: "too short", body: `{"query": "hi"}`},
		{name: "too long", body: `{"query": "` + strings.Repeat("x", 1001) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{result: "unused"}
			srv := New(serverConfig(), runner)

			rec, env := postRun(t, srv.Handler(), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "validation_error", env.Error.Type)
			assert.Empty(t, runner.queries, "runner must not be called")
		})
	}
}

func TestServer_GuardrailViolation(t *testing.T) {
	runner := &stubRunner{result: "unused"}
	srv := New(serverConfig(), runner)

	rec, env := postRun(t, srv.Handler(), `{"query": "tips on Insider Trading please"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "guardrail_violation", env.Error.Type)
	assert.Equal(t, "Request contains prohibited content.", env.Error.Message)
	assert.Empty(t, runner.queries, "guardrail must reject before the run starts")
}

func TestServer_Timeout(t *testing.T) {
	cfg := serverConfig()
	cfg.Server.TimeoutSeconds = 0.05

	runner := &stubRunner{block: make(chan struct{})} // never unblocked
	srv := New(cfg, runner)

	rec, env := postRun(t, srv.Handler(), `{"query": "slow question"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "timeout_error", env.Error.Type)
}

func TestServer_ProcessingError(t *testing.T) {
	runner := &stubRunner{err: errors.New("pipeline blew up")}
	srv := New(serverConfig(), runner)

	rec, env := postRun(t, srv.Handler(), `{"query": "valid question"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "processing_error", env.Error.Type)
	assert.Contains(t, env.Error.Message, "pipeline blew up")
}

func TestServer_AdmissionControl(t *testing.T) {
	cfg := serverConfig()
	cfg.Server.MaxConcurrentRuns = 1

	release := make(chan struct{})
	runner := &stubRunner{result: "done", block: release}
	srv := New(cfg, runner)

	first := make(chan envelope, 1)
	go func() {
		_, env := postRun(t, srv.Handler(), `{"query": "occupies the only slot"}`)
		first <- env
	}()

	// Wait for the first run to hold the semaphore.
	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.queries) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec, env := postRun(t, srv.Handler(), `{"query": "one too many"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "processing_error", env.Error.Type)

	close(release)
	assert.Equal(t, "done", (<-first).Result)
}

func TestServer_Health(t *testing.T) {
	srv := New(serverConfig(), &stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "advisor", body["pipeline"])
}

func TestServer_Metrics(t *testing.T) {
	srv := New(serverConfig(), &stubRunner{result: "r"})

	postRun(t, srv.Handler(), `{"query": "a perfectly fine question"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "advisor_runs_total")
}

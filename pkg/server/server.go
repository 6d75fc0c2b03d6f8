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

// Package server is the HTTP request boundary. It screens incoming queries
// (validation, guardrails, admission control), runs the pipeline under the
// configured deadline, and wraps every outcome in a timestamped envelope.
// Run-scoped failures become structured error envelopes; they never crash
// the process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/emrekaya/advisor/pkg/config"
	"github.com/emrekaya/advisor/pkg/logger"
)

// Query length bounds, matching the request contract.
const (
	minQueryLength = 3
	maxQueryLength = 1000
)

// Error kinds carried in the envelope.
const (
	kindValidation = "validation_error"
	kindGuardrail  = "guardrail_violation"
	kindTimeout    = "timeout_error"
	kindProcessing = "processing_error"
)

// Runner executes one pipeline run. Satisfied by *runtime.Runtime.
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

type runRequest struct {
	Query string `json:"query"`
}

type runError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// envelope is the uniform response shape: either Result or Error is set.
type envelope struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMS float64   `json:"processing_time_ms"`
	Result           string    `json:"result,omitempty"`
	Error            *runError `json:"error,omitempty"`
}

// Server serves the run endpoint plus health and metrics.
type Server struct {
	cfg     *config.Config
	runner  Runner
	router  chi.Router
	sem     *semaphore.Weighted
	metrics *metrics
	logger  *slog.Logger
}

func New(cfg *config.Config, runner Runner) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		sem:     semaphore.NewWeighted(int64(cfg.Server.MaxConcurrentRuns)),
		metrics: newMetrics(),
		logger:  logger.GetLogger().With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/crew/run", s.handleRun)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	s.router = r

	return s
}

// Handler exposes the router, mainly for tests and embedders.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, requestID, start, http.StatusBadRequest, kindValidation, "request body must be JSON with a query field")
		return
	}

	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLength || len(query) > maxQueryLength {
		s.fail(w, requestID, start, http.StatusBadRequest, kindValidation,
			fmt.Sprintf("query length must be between %d and %d characters", minQueryLength, maxQueryLength))
		return
	}

	if keyword := s.violatedKeyword(query); keyword != "" {
		s.logger.Warn("guardrail violation", "request_id", requestID, "keyword", keyword)
		s.fail(w, requestID, start, http.StatusUnprocessableEntity, kindGuardrail, s.cfg.Guardrails.BreakMessage)
		return
	}

	// Admission control: excess runs are rejected immediately rather than
	// queued against the deadline.
	if !s.sem.TryAcquire(1) {
		s.fail(w, requestID, start, http.StatusServiceUnavailable, kindProcessing, "server is at capacity, try again later")
		return
	}
	defer s.sem.Release(1)

	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	timeout := time.Duration(s.cfg.Server.TimeoutSeconds * float64(time.Second))
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	s.logger.Info("run started", "request_id", requestID, "query_length", len(query))

	result, err := s.runner.Run(ctx, query)
	elapsed := time.Since(start)
	s.metrics.runDuration.Observe(elapsed.Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("run timed out", "request_id", requestID, "elapsed", elapsed)
			s.fail(w, requestID, start, http.StatusGatewayTimeout, kindTimeout,
				fmt.Sprintf("run exceeded the %.0f second limit", s.cfg.Server.TimeoutSeconds))
			return
		}
		s.logger.Error("run failed", "request_id", requestID, "elapsed", elapsed, "error", err)
		s.fail(w, requestID, start, http.StatusInternalServerError, kindProcessing, err.Error())
		return
	}

	s.logger.Info("run succeeded", "request_id", requestID, "elapsed", elapsed)
	s.metrics.runsTotal.WithLabelValues("success").Inc()
	s.write(w, http.StatusOK, envelope{
		RequestID:        requestID,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		Result:           result,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"pipeline": s.cfg.Pipeline.Name,
	})
}

// violatedKeyword returns the first prohibited keyword found in the query.
func (s *Server) violatedKeyword(query string) string {
	lowered := strings.ToLower(query)
	for _, keyword := range s.cfg.Guardrails.ProhibitedKeywords {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			return keyword
		}
	}
	return ""
}

func (s *Server) fail(w http.ResponseWriter, requestID string, start time.Time, status int, kind, message string) {
	s.metrics.runsTotal.WithLabelValues(kind).Inc()
	elapsed := time.Since(start)
	s.write(w, status, envelope{
		RequestID:        requestID,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		Error:            &runError{Type: kind, Message: message},
	})
}

func (s *Server) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

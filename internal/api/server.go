// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes the workflow engine over HTTP: workflow and graph
// CRUD, run admission (manual, webhook, event, chain), run inspection, and
// credential management.
package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/flowline/flowline/internal/engine"
	"github.com/flowline/flowline/internal/metrics"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/trigger"
)

// Server wires the API handlers to their dependencies.
type Server struct {
	store   store.Store
	engine  *engine.Engine
	gateway *trigger.Gateway
	metrics *metrics.Metrics
	logger  *slog.Logger

	// webhookLimiter bounds inbound webhook and event traffic.
	webhookLimiter *rate.Limiter
}

// Config assembles a Server.
type Config struct {
	Store   store.Store
	Engine  *engine.Engine
	Gateway *trigger.Gateway
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// WebhookRate is requests per second admitted to trigger endpoints;
	// WebhookBurst is the burst size. Zero values disable limiting.
	WebhookRate  float64
	WebhookBurst int
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:   cfg.Store,
		engine:  cfg.Engine,
		gateway: cfg.Gateway,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if cfg.WebhookRate > 0 {
		s.webhookLimiter = rate.NewLimiter(rate.Limit(cfg.WebhookRate), cfg.WebhookBurst)
	}
	return s
}

// Handler builds the routed handler with logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("PATCH /api/workflows/{id}", s.handleUpdateWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)

	mux.HandleFunc("POST /api/workflows/{id}/execute", s.handleExecute)
	mux.HandleFunc("GET /api/workflows/{id}/executions", s.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", s.handleGetExecution)
	mux.HandleFunc("GET /api/executions/{id}/steps", s.handleListStepExecutions)

	mux.HandleFunc("POST /api/webhooks/{webhookId}", s.rateLimited(s.handleWebhook))
	mux.HandleFunc("POST /api/events", s.rateLimited(s.handleEvent))
	mux.HandleFunc("POST /api/workflows/{id}/chain", s.handleChain)

	mux.HandleFunc("GET /api/credentials", s.handleListCredentials)
	mux.HandleFunc("POST /api/credentials", s.handleCreateCredential)
	mux.HandleFunc("DELETE /api/credentials/{id}", s.handleDeleteCredential)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return s.withLogging(mux)
}

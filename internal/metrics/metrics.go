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

// Package metrics exposes Prometheus collectors for run and step activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors backed by a private
// registry, so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	llmRequests  *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowline_runs_started_total",
			Help: "Total number of workflow runs started.",
		}),
		runsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowline_runs_finished_total",
			Help: "Total number of workflow runs reaching a terminal status.",
		}, []string{"status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowline_step_duration_seconds",
			Help:    "Step handler duration by step kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowline_llm_requests_total",
			Help: "Total number of LLM completion requests by provider.",
		}, []string{"provider"}),
	}
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunStarted records a run admission.
func (m *Metrics) RunStarted() {
	m.runsStarted.Inc()
}

// RunFinished records a run reaching the given terminal status.
func (m *Metrics) RunFinished(status string) {
	m.runsFinished.WithLabelValues(status).Inc()
}

// ObserveStep records one step dispatch duration.
func (m *Metrics) ObserveStep(kind string, d time.Duration) {
	m.stepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// LLMRequest records one completion request.
func (m *Metrics) LLMRequest(provider string) {
	m.llmRequests.WithLabelValues(provider).Inc()
}

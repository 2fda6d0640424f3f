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

// Package engine drives workflow runs: it loads the graph, seeds the trigger
// output, walks the step graph depth-first with branch pruning and cycle
// detection, and records executions and step executions in the store.
//
// Runs are independent tasks; within one run, step dispatch is strictly
// sequential, so the outputs map has a single writer.
package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowline/flowline/internal/expression"
	"github.com/flowline/flowline/internal/llm"
	"github.com/flowline/flowline/internal/log"
	"github.com/flowline/flowline/internal/metrics"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/trigger"
	"github.com/flowline/flowline/pkg/errors"
)

// DefaultRunTimeout bounds a run end to end when the caller does not
// configure one.
const DefaultRunTimeout = 10 * time.Minute

// Config assembles an Engine's dependencies.
type Config struct {
	Store    store.Store
	Provider llm.Provider
	Sandbox  *expression.Evaluator
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// RunTimeout bounds a single run. Zero selects DefaultRunTimeout.
	RunTimeout time.Duration
}

// Engine executes workflow runs against a Store.
type Engine struct {
	store      store.Store
	llm        llm.Provider
	sandbox    *expression.Evaluator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	runTimeout time.Duration
}

// New creates an Engine. Nil optional dependencies get defaults: a mock
// provider, a default-budget sandbox, a from-env logger, and fresh metrics.
func New(cfg Config) *Engine {
	e := &Engine{
		store:      cfg.Store,
		llm:        cfg.Provider,
		sandbox:    cfg.Sandbox,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		runTimeout: cfg.RunTimeout,
	}
	if e.llm == nil {
		e.llm = llm.NewMock()
	}
	if e.sandbox == nil {
		e.sandbox = expression.New(0)
	}
	if e.logger == nil {
		e.logger = log.New(log.DefaultConfig())
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	if e.runTimeout <= 0 {
		e.runTimeout = DefaultRunTimeout
	}
	return e
}

// StartRun executes a workflow synchronously and returns the terminal run
// record. The returned error covers admission only (missing workflow,
// storage failure); a run that fails mid-flight still returns its record
// with status "failed".
func (e *Engine) StartRun(ctx context.Context, workflowID string, env trigger.Envelope) (*store.Execution, error) {
	rs, err := e.prepare(ctx, workflowID, env)
	if err != nil {
		return nil, err
	}
	e.drive(ctx, rs)
	return rs.execution, nil
}

// StartRunAsync admits a run and drives it in the background, returning the
// run id immediately. Used for webhook and event triggers, which respond 202
// without awaiting terminal status.
func (e *Engine) StartRunAsync(ctx context.Context, workflowID string, env trigger.Envelope) (string, error) {
	rs, err := e.prepare(ctx, workflowID, env)
	if err != nil {
		return "", err
	}
	go e.drive(context.Background(), rs)
	return rs.execution.ID, nil
}

// prepare loads the graph, seeds the trigger output, and persists the
// initial running execution record.
func (e *Engine) prepare(ctx context.Context, workflowID string, env trigger.Envelope) (*runState, error) {
	workflow, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		var nf *errors.NotFoundError
		if stderrors.As(err, &nf) {
			return nil, errors.Wrap(errors.CodeWorkflowNotFound, err, "workflow %s not found", workflowID)
		}
		return nil, err
	}

	steps, err := e.store.GetSteps(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	edges, err := e.store.GetEdges(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	rs := newRunState(e, workflow, steps, edges)
	rs.triggerType = env.Type

	outputs := rs.rootScope.outputs
	if triggerStep := rs.findTrigger(env.StepKind()); triggerStep != nil {
		outputs[triggerStep.ID] = env.Seed()
	}
	// Workflow chaining merges the source run's outputs into the initial map.
	for stepID, value := range env.Outputs {
		outputs[stepID] = value
	}

	execution := &store.Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     store.ExecutionRunning,
		StartTime:  time.Now(),
		Outputs:    outputs,
	}
	if err := e.store.CreateExecution(ctx, execution); err != nil {
		return nil, err
	}
	rs.execution = execution
	rs.logger = log.WithRunContext(e.logger, execution.ID, workflowID)
	return rs, nil
}

// drive walks the graph to a terminal status and persists the outcome.
func (e *Engine) drive(ctx context.Context, rs *runState) {
	e.metrics.RunStarted()
	rs.logger.Info("run started", slog.String("trigger", string(rs.triggerType)))

	runCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	err := rs.rootScope.runFrom(runCtx, rs.startSet())
	e.finalize(rs, err)
}

// finalize transitions the execution to its terminal status exactly once.
func (e *Engine) finalize(rs *runState, runErr error) {
	now := time.Now()
	execution := rs.execution
	execution.EndTime = &now
	execution.Outputs = rs.rootScope.outputs

	if runErr != nil {
		execution.Status = store.ExecutionFailed
		execution.Error = runErr.Error()
		rs.logger.Warn("run failed", slog.String("error", runErr.Error()))
	} else {
		execution.Status = store.ExecutionCompleted
		rs.logger.Info("run completed")
	}
	e.metrics.RunFinished(string(execution.Status))

	// Persist with a fresh context: the run context may already be done.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.UpdateExecution(persistCtx, execution); err != nil {
		rs.logger.Error("failed to persist run outcome", slog.String("error", err.Error()))
	}
}

// checkCancelled maps context termination to engine error codes. Called
// before each step dispatch and each LLM call.
func checkCancelled(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return errors.New(errors.CodeDeadlineExceeded, "run deadline exceeded")
	default:
		return errors.New(errors.CodeCancelled, "run cancelled")
	}
}

// complete calls the provider, counting the request and normalizing provider
// failures to LLM_ERROR.
func (e *Engine) complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := checkCancelled(ctx); err != nil {
		return "", err
	}
	e.metrics.LLMRequest(providerName(e.llm))

	text, err := e.llm.Complete(ctx, prompt, options)
	if err != nil {
		if cerr := checkCancelled(ctx); cerr != nil {
			return "", cerr
		}
		return "", errors.Wrap(errors.CodeLLMError, err, "completion failed")
	}
	return text, nil
}

func providerName(p llm.Provider) string {
	switch p.(type) {
	case *llm.Mock:
		return "mock"
	case *llm.Anthropic:
		return "anthropic"
	default:
		return "custom"
	}
}

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

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowline/flowline/internal/log"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/pkg/errors"
)

// stepResult is what a handler hands back to the traversal.
type stepResult struct {
	// value is the output committed under the step's id.
	value any

	// next lists the successor step ids the handler selected. Meaningful
	// only when exclusive is set; otherwise the traversal follows every
	// outgoing edge.
	next []string

	// exclusive marks branch-pruning handlers (condition, switch) and
	// handlers that drive their own children (loop).
	exclusive bool
}

// handlerFunc executes one step within a scope.
type handlerFunc func(ctx context.Context, sc *scope, step *store.Step) (stepResult, error)

// handlers is the closed dispatch table over step kinds. Populated in init:
// a composite literal would form an initialization cycle through handleLoop,
// which re-enters the traversal.
var handlers map[store.StepKind]handlerFunc

func init() {
	handlers = map[store.StepKind]handlerFunc{
		store.KindManualTrigger:   handleTrigger,
		store.KindScheduleTrigger: handleTrigger,
		store.KindWebhookTrigger:  handleTrigger,
		store.KindAppEventTrigger: handleTrigger,
		store.KindWorkflowTrigger: handleTrigger,

		store.KindBasicLLMChain:        handleBasicLLMChain,
		store.KindAITransform:          handleAITransform,
		store.KindInformationExtractor: handleInformationExtractor,
		store.KindQAChain:              handleQAChain,
		store.KindSentimentAnalysis:    handleSentimentAnalysis,
		store.KindSummarizationChain:   handleSummarizationChain,
		store.KindTextClassifier:       handleTextClassifier,

		store.KindCondition: handleCondition,
		store.KindSwitch:    handleSwitch,
		store.KindLoop:      handleLoop,
		store.KindFilter:    handleFilter,
		store.KindMerge:     handleMerge,
		store.KindCode:      handleCode,
	}
}

// dispatch runs one step through its handler, recording a StepExecution that
// transitions running -> completed | failed. Records are global to the run,
// including inside loop scopes.
func (sc *scope) dispatch(ctx context.Context, step *store.Step) (stepResult, error) {
	e := sc.run.engine
	logger := log.WithStepContext(sc.run.logger, sc.run.execution.ID, step.ID)

	handler, ok := handlers[step.Kind]
	if !ok {
		return stepResult{}, &errors.ValidationError{
			Field:   "kind",
			Message: "unknown step kind: " + string(step.Kind),
		}
	}

	record := &store.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: sc.run.execution.ID,
		StepID:      step.ID,
		Status:      store.StepRunning,
		StartTime:   time.Now(),
		Input:       sc.inputsFor(step.ID),
	}
	if err := e.store.CreateStepExecution(ctx, record); err != nil {
		return stepResult{}, err
	}

	logger.Debug("step dispatched", slog.String(log.StepKindKey, string(step.Kind)))
	result, err := handler(ctx, sc, step)

	end := time.Now()
	record.EndTime = &end
	e.metrics.ObserveStep(string(step.Kind), end.Sub(record.StartTime))

	// Terminal record updates use a detached context so a cancelled run
	// still persists its failed step.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err != nil {
		record.Status = store.StepFailed
		record.Error = err.Error()
		if uerr := e.store.UpdateStepExecution(persistCtx, record); uerr != nil {
			logger.Error("failed to record step failure", slog.String("error", uerr.Error()))
		}
		return stepResult{}, err
	}

	record.Status = store.StepCompleted
	record.Output = result.value
	if uerr := e.store.UpdateStepExecution(persistCtx, record); uerr != nil {
		logger.Error("failed to record step result", slog.String("error", uerr.Error()))
	}
	return result, nil
}

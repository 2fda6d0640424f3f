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

// Package store defines the persistence model and the Store capability used
// by the engine: workflows, steps, edges, executions, step executions, and
// credentials. Graph records are authored by the editor and never mutated by
// the engine; execution records transition once to a terminal status.
package store

import (
	"time"
)

// StepKind identifies the handler a step dispatches to. The set is closed.
type StepKind string

// Trigger kinds.
const (
	KindManualTrigger   StepKind = "manual_trigger"
	KindScheduleTrigger StepKind = "schedule_trigger"
	KindWebhookTrigger  StepKind = "webhook_trigger"
	KindAppEventTrigger StepKind = "app_event_trigger"
	KindWorkflowTrigger StepKind = "workflow_trigger"
)

// AI kinds.
const (
	KindBasicLLMChain        StepKind = "basic_llm_chain"
	KindAITransform          StepKind = "ai_transform"
	KindInformationExtractor StepKind = "information_extractor"
	KindQAChain              StepKind = "qa_chain"
	KindSentimentAnalysis    StepKind = "sentiment_analysis"
	KindSummarizationChain   StepKind = "summarization_chain"
	KindTextClassifier       StepKind = "text_classifier"
)

// Flow-control and code kinds.
const (
	KindCondition StepKind = "condition"
	KindSwitch    StepKind = "switch"
	KindLoop      StepKind = "loop"
	KindFilter    StepKind = "filter"
	KindMerge     StepKind = "merge"
	KindCode      StepKind = "code"
)

// IsTrigger reports whether the kind admits a run rather than doing work.
func (k StepKind) IsTrigger() bool {
	switch k {
	case KindManualTrigger, KindScheduleTrigger, KindWebhookTrigger,
		KindAppEventTrigger, KindWorkflowTrigger:
		return true
	}
	return false
}

// Valid reports whether the kind belongs to the closed set.
func (k StepKind) Valid() bool {
	if k.IsTrigger() {
		return true
	}
	switch k {
	case KindBasicLLMChain, KindAITransform, KindInformationExtractor,
		KindQAChain, KindSentimentAnalysis, KindSummarizationChain,
		KindTextClassifier, KindCondition, KindSwitch, KindLoop,
		KindFilter, KindMerge, KindCode:
		return true
	}
	return false
}

// ExecutionStatus is the lifecycle state of a run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepExecutionStatus is the lifecycle state of one step dispatch.
type StepExecutionStatus string

const (
	StepPending   StepExecutionStatus = "pending"
	StepRunning   StepExecutionStatus = "running"
	StepCompleted StepExecutionStatus = "completed"
	StepFailed    StepExecutionStatus = "failed"
)

// Workflow is a persistent, purely declarative graph identity.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Step is one node of a workflow graph.
type Step struct {
	ID         string   `json:"id"`
	WorkflowID string   `json:"workflowId"`
	Kind       StepKind `json:"kind"`
	Label      string   `json:"label,omitempty"`
	// Position is an opaque UI hint carried through unchanged.
	Position map[string]any `json:"position,omitempty"`
	// Config is the kind-specific configuration map.
	Config map[string]any `json:"config,omitempty"`
	// Order breaks ties between ready siblings and gives a stable
	// default topological order.
	Order int `json:"order"`
}

// Edge is a directed connector between two steps of the same workflow.
// Label carries the branch tag for condition ("true"/"false") and switch
// (case value or "default") sources; otherwise it is empty.
type Edge struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	SourceID   string `json:"sourceId"`
	TargetID   string `json:"targetId"`
	Label      string `json:"label,omitempty"`
}

// Execution is one run of a workflow from trigger to terminal status.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflowId"`
	Status     ExecutionStatus `json:"status"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    *time.Time      `json:"endTime,omitempty"`
	Error      string          `json:"error,omitempty"`
	// Outputs maps step id to the value that step committed.
	Outputs map[string]any `json:"outputs"`
}

// StepExecution is one dispatch of one step within a run.
type StepExecution struct {
	ID          string              `json:"id"`
	ExecutionID string              `json:"workflowExecutionId"`
	StepID      string              `json:"stepId"`
	Status      StepExecutionStatus `json:"status"`
	StartTime   time.Time           `json:"startTime"`
	EndTime     *time.Time          `json:"endTime,omitempty"`
	Error       string              `json:"error,omitempty"`
	// Input is a snapshot of the inputs view handed to the handler.
	Input  map[string]any `json:"input,omitempty"`
	Output any            `json:"output,omitempty"`
}

// Credential is a named secret, looked up by type (e.g. "anthropic").
type Credential struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Value     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

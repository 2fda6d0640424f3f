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

package store

import (
	"context"
)

// WorkflowStore persists workflow identities.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, w *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]*Workflow, error)
	UpdateWorkflow(ctx context.Context, w *Workflow) error
	// DeleteWorkflow cascades to the workflow's steps, edges, and runs.
	DeleteWorkflow(ctx context.Context, id string) error
}

// GraphStore persists the step and edge sets of a workflow.
type GraphStore interface {
	// GetSteps returns the workflow's steps ordered by Order then ID.
	GetSteps(ctx context.Context, workflowID string) ([]*Step, error)
	GetEdges(ctx context.Context, workflowID string) ([]*Edge, error)
	// ReplaceGraph atomically replaces the workflow's step and edge sets.
	// Edges are cleared before steps to satisfy foreign keys.
	ReplaceGraph(ctx context.Context, workflowID string, steps []*Step, edges []*Edge) error
}

// ExecutionStore persists runs and step runs.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, e *Execution) error
	UpdateExecution(ctx context.Context, e *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	// ListExecutions returns the workflow's runs newest-first.
	ListExecutions(ctx context.Context, workflowID string) ([]*Execution, error)

	CreateStepExecution(ctx context.Context, se *StepExecution) error
	UpdateStepExecution(ctx context.Context, se *StepExecution) error
	ListStepExecutions(ctx context.Context, executionID string) ([]*StepExecution, error)
}

// CredentialStore persists provider credentials.
type CredentialStore interface {
	ListCredentials(ctx context.Context) ([]*Credential, error)
	CreateCredential(ctx context.Context, c *Credential) error
	DeleteCredential(ctx context.Context, id string) error
}

// Store is the full persistence capability the engine and API depend on.
// Implementations must be safe for concurrent callers from different runs.
type Store interface {
	WorkflowStore
	GraphStore
	ExecutionStore
	CredentialStore

	Close() error
}

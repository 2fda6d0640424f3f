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

// Package memory provides an in-memory Store implementation. It is the
// default backend when no DATABASE_URL is configured and is used throughout
// the test suite.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/pkg/errors"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store is an in-memory storage backend. All records are cloned on write and
// on read so that callers never share mutable state with the store.
type Store struct {
	mu             sync.RWMutex
	workflows      map[string]*store.Workflow
	steps          map[string][]*store.Step // keyed by workflow id
	edges          map[string][]*store.Edge // keyed by workflow id
	executions     map[string]*store.Execution
	stepExecutions map[string][]*store.StepExecution // keyed by execution id
	credentials    map[string]*store.Credential
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		workflows:      make(map[string]*store.Workflow),
		steps:          make(map[string][]*store.Step),
		edges:          make(map[string][]*store.Edge),
		executions:     make(map[string]*store.Execution),
		stepExecutions: make(map[string][]*store.StepExecution),
		credentials:    make(map[string]*store.Credential),
	}
}

// CreateWorkflow creates a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *store.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[w.ID]; exists {
		return &errors.ValidationError{Field: "id", Message: "workflow already exists: " + w.ID}
	}

	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.workflows[id]
	if !exists {
		return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	return cloneWorkflow(w), nil
}

// ListWorkflows returns all workflows ordered by creation time.
func (s *Store) ListWorkflows(ctx context.Context) ([]*store.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		result = append(result, cloneWorkflow(w))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateWorkflow updates an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, w *store.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.workflows[w.ID]
	if !exists {
		return &errors.NotFoundError{Resource: "workflow", ID: w.ID}
	}

	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now()
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

// DeleteWorkflow deletes a workflow and cascades to its steps, edges, and runs.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[id]; !exists {
		return &errors.NotFoundError{Resource: "workflow", ID: id}
	}

	delete(s.workflows, id)
	delete(s.steps, id)
	delete(s.edges, id)
	for execID, exec := range s.executions {
		if exec.WorkflowID == id {
			delete(s.executions, execID)
			delete(s.stepExecutions, execID)
		}
	}
	return nil
}

// GetSteps returns the workflow's steps ordered by Order then ID.
func (s *Store) GetSteps(ctx context.Context, workflowID string) ([]*store.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]*store.Step, 0, len(s.steps[workflowID]))
	for _, st := range s.steps[workflowID] {
		steps = append(steps, cloneStep(st))
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, nil
}

// GetEdges returns the workflow's edges.
func (s *Store) GetEdges(ctx context.Context, workflowID string) ([]*store.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]*store.Edge, 0, len(s.edges[workflowID]))
	for _, e := range s.edges[workflowID] {
		clone := *e
		edges = append(edges, &clone)
	}
	return edges, nil
}

// ReplaceGraph atomically replaces the workflow's step and edge sets.
func (s *Store) ReplaceGraph(ctx context.Context, workflowID string, steps []*store.Step, edges []*store.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflowID]; !exists {
		return &errors.NotFoundError{Resource: "workflow", ID: workflowID}
	}

	newSteps := make([]*store.Step, 0, len(steps))
	for _, st := range steps {
		st.WorkflowID = workflowID
		newSteps = append(newSteps, cloneStep(st))
	}
	newEdges := make([]*store.Edge, 0, len(edges))
	for _, e := range edges {
		e.WorkflowID = workflowID
		clone := *e
		newEdges = append(newEdges, &clone)
	}

	s.steps[workflowID] = newSteps
	s.edges[workflowID] = newEdges
	return nil
}

// CreateExecution creates a new run record.
func (s *Store) CreateExecution(ctx context.Context, e *store.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[e.ID]; exists {
		return &errors.ValidationError{Field: "id", Message: "execution already exists: " + e.ID}
	}
	s.executions[e.ID] = cloneExecution(e)
	return nil
}

// UpdateExecution updates an existing run record.
func (s *Store) UpdateExecution(ctx context.Context, e *store.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[e.ID]; !exists {
		return &errors.NotFoundError{Resource: "execution", ID: e.ID}
	}
	s.executions[e.ID] = cloneExecution(e)
	return nil
}

// GetExecution retrieves a run by id.
func (s *Store) GetExecution(ctx context.Context, id string) (*store.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.executions[id]
	if !exists {
		return nil, &errors.NotFoundError{Resource: "execution", ID: id}
	}
	return cloneExecution(e), nil
}

// ListExecutions returns the workflow's runs newest-first.
func (s *Store) ListExecutions(ctx context.Context, workflowID string) ([]*store.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*store.Execution
	for _, e := range s.executions {
		if e.WorkflowID == workflowID {
			result = append(result, cloneExecution(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result, nil
}

// CreateStepExecution records one step dispatch.
func (s *Store) CreateStepExecution(ctx context.Context, se *store.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stepExecutions[se.ExecutionID] = append(s.stepExecutions[se.ExecutionID], cloneStepExecution(se))
	return nil
}

// UpdateStepExecution updates a step dispatch record in place.
func (s *Store) UpdateStepExecution(ctx context.Context, se *store.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.stepExecutions[se.ExecutionID]
	for i, existing := range records {
		if existing.ID == se.ID {
			records[i] = cloneStepExecution(se)
			return nil
		}
	}
	return &errors.NotFoundError{Resource: "step execution", ID: se.ID}
}

// ListStepExecutions returns the run's step records in dispatch order.
func (s *Store) ListStepExecutions(ctx context.Context, executionID string) ([]*store.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*store.StepExecution, 0, len(s.stepExecutions[executionID]))
	for _, se := range s.stepExecutions[executionID] {
		records = append(records, cloneStepExecution(se))
	}
	return records, nil
}

// ListCredentials returns all credentials.
func (s *Store) ListCredentials(ctx context.Context) ([]*store.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.Credential, 0, len(s.credentials))
	for _, c := range s.credentials {
		clone := *c
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CreateCredential stores a credential.
func (s *Store) CreateCredential(ctx context.Context, c *store.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.CreatedAt = time.Now()
	clone := *c
	s.credentials[c.ID] = &clone
	return nil
}

// DeleteCredential deletes a credential.
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[id]; !exists {
		return &errors.NotFoundError{Resource: "credential", ID: id}
	}
	delete(s.credentials, id)
	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	return nil
}

func cloneWorkflow(w *store.Workflow) *store.Workflow {
	clone := *w
	return &clone
}

func cloneStep(st *store.Step) *store.Step {
	clone := *st
	clone.Position = cloneMap(st.Position)
	clone.Config = cloneMap(st.Config)
	return &clone
}

func cloneExecution(e *store.Execution) *store.Execution {
	clone := *e
	clone.Outputs = cloneMap(e.Outputs)
	if e.EndTime != nil {
		t := *e.EndTime
		clone.EndTime = &t
	}
	return &clone
}

func cloneStepExecution(se *store.StepExecution) *store.StepExecution {
	clone := *se
	clone.Input = cloneMap(se.Input)
	clone.Output = cloneValue(se.Output)
	if se.EndTime != nil {
		t := *se.EndTime
		clone.EndTime = &t
	}
	return &clone
}

// cloneMap deep-copies a JSON-like map through a marshal round-trip.
// Execution outputs are mutated by the run driver after creation, so the
// store must never alias the caller's maps.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		// Non-serializable values do not survive the store boundary.
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

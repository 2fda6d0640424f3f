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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	w := &store.Workflow{ID: "w1", Name: "first", Description: "desc", IsActive: true}
	require.NoError(t, s.CreateWorkflow(ctx, w))

	got, err := s.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, "desc", got.Description)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())

	got.Name = "renamed"
	require.NoError(t, s.UpdateWorkflow(ctx, got))
	got, err = s.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	_, err = s.GetWorkflow(ctx, "missing")
	var notFound *errors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGraphRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateWorkflow(ctx, &store.Workflow{ID: "w1", Name: "a"}))

	steps := []*store.Step{
		{
			ID:       "s2",
			Kind:     store.KindCode,
			Label:    "double",
			Config:   map[string]any{"code": "inputs.n * 2"},
			Position: map[string]any{"x": float64(10), "y": float64(20)},
			Order:    1,
		},
		{ID: "s1", Kind: store.KindManualTrigger, Order: 0},
	}
	edges := []*store.Edge{
		{ID: "e1", SourceID: "s1", TargetID: "s2", Label: "true"},
	}
	require.NoError(t, s.ReplaceGraph(ctx, "w1", steps, edges))

	gotSteps, err := s.GetSteps(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, gotSteps, 2)
	assert.Equal(t, "s1", gotSteps[0].ID)
	assert.Equal(t, "s2", gotSteps[1].ID)
	assert.Equal(t, map[string]any{"code": "inputs.n * 2"}, gotSteps[1].Config)
	assert.Equal(t, map[string]any{"x": float64(10), "y": float64(20)}, gotSteps[1].Position)

	gotEdges, err := s.GetEdges(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, gotEdges, 1)
	assert.Equal(t, "true", gotEdges[0].Label)

	// Replacement is atomic: the old graph disappears.
	require.NoError(t, s.ReplaceGraph(ctx, "w1", []*store.Step{
		{ID: "s3", Kind: store.KindCode},
	}, nil))
	gotSteps, err = s.GetSteps(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, gotSteps, 1)
	assert.Equal(t, "s3", gotSteps[0].ID)
}

func TestExecutionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateWorkflow(ctx, &store.Workflow{ID: "w1", Name: "a"}))

	exec := &store.Execution{
		ID:         "e1",
		WorkflowID: "w1",
		Status:     store.ExecutionRunning,
		StartTime:  time.Now(),
		Outputs:    map[string]any{"trigger": map[string]any{"triggered": true}},
	}
	require.NoError(t, s.CreateExecution(ctx, exec))

	end := time.Now()
	exec.Status = store.ExecutionCompleted
	exec.EndTime = &end
	require.NoError(t, s.UpdateExecution(ctx, exec))

	got, err := s.GetExecution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, store.ExecutionCompleted, got.Status)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, map[string]any{"triggered": true}, got.Outputs["trigger"])
}

func TestListExecutionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateWorkflow(ctx, &store.Workflow{ID: "w1", Name: "a"}))

	base := time.Now()
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.CreateExecution(ctx, &store.Execution{
			ID:         id,
			WorkflowID: "w1",
			Status:     store.ExecutionCompleted,
			StartTime:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	executions, err := s.ListExecutions(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, executions, 3)
	assert.Equal(t, "e3", executions[0].ID)
}

func TestStepExecutionsDispatchOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateWorkflow(ctx, &store.Workflow{ID: "w1", Name: "a"}))
	require.NoError(t, s.CreateExecution(ctx, &store.Execution{
		ID: "e1", WorkflowID: "w1", Status: store.ExecutionRunning, StartTime: time.Now(),
	}))

	// Insert with ids in reverse lexical order; dispatch order must win.
	for _, id := range []string{"z", "m", "a"} {
		require.NoError(t, s.CreateStepExecution(ctx, &store.StepExecution{
			ID:          id,
			ExecutionID: "e1",
			StepID:      "step-" + id,
			Status:      store.StepRunning,
			StartTime:   time.Now(),
			Input:       map[string]any{"from": id},
		}))
	}

	records, err := s.ListStepExecutions(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "z", records[0].ID)
	assert.Equal(t, "a", records[2].ID)
	assert.Equal(t, map[string]any{"from": "z"}, records[0].Input)

	records[0].Status = store.StepCompleted
	records[0].Output = "done"
	require.NoError(t, s.UpdateStepExecution(ctx, records[0]))

	records, err = s.ListStepExecutions(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, store.StepCompleted, records[0].Status)
	assert.Equal(t, "done", records[0].Output)
}

func TestDeleteWorkflowCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateWorkflow(ctx, &store.Workflow{ID: "w1", Name: "a"}))
	require.NoError(t, s.ReplaceGraph(ctx, "w1", []*store.Step{
		{ID: "s1", Kind: store.KindCode},
	}, nil))
	require.NoError(t, s.CreateExecution(ctx, &store.Execution{
		ID: "e1", WorkflowID: "w1", Status: store.ExecutionRunning, StartTime: time.Now(),
	}))

	require.NoError(t, s.DeleteWorkflow(ctx, "w1"))

	steps, err := s.GetSteps(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, steps)

	_, err = s.GetExecution(ctx, "e1")
	var notFound *errors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateCredential(ctx, &store.Credential{
		ID: "c1", Name: "prod", Type: "anthropic", Value: "sk-secret",
	}))

	credentials, err := s.ListCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, credentials, 1)
	assert.Equal(t, "sk-secret", credentials[0].Value)

	require.NoError(t, s.DeleteCredential(ctx, "c1"))
	credentials, err = s.ListCredentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, credentials)
}

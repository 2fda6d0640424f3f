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

package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/flowline/flowline/internal/api/httputil"
	"github.com/flowline/flowline/internal/store"
)

// workflowDetail is the GET response: the workflow plus its graph.
type workflowDetail struct {
	*store.Workflow
	Steps []*store.Step `json:"steps"`
	Edges []*store.Edge `json:"edges"`
}

// workflowPatch is the PATCH body. Nil field pointers leave the stored value
// unchanged; non-nil Steps or Edges fully replace the graph.
type workflowPatch struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	IsActive    *bool         `json:"isActive"`
	Steps       []*store.Step `json:"steps"`
	Edges       []*store.Edge `json:"edges"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows(r.Context())
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	if workflows == nil {
		workflows = []*store.Workflow{}
	}
	httputil.WriteJSON(w, http.StatusOK, workflows)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var workflow store.Workflow
	if err := json.NewDecoder(r.Body).Decode(&workflow); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if workflow.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	if err := s.store.CreateWorkflow(r.Context(), &workflow); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &workflow)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	workflow, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	steps, err := s.store.GetSteps(r.Context(), id)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	edges, err := s.store.GetEdges(r.Context(), id)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	if steps == nil {
		steps = []*store.Step{}
	}
	if edges == nil {
		edges = []*store.Edge{}
	}

	httputil.WriteJSON(w, http.StatusOK, workflowDetail{
		Workflow: workflow,
		Steps:    steps,
		Edges:    edges,
	})
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch workflowPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workflow, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	if patch.Name != nil {
		workflow.Name = *patch.Name
	}
	if patch.Description != nil {
		workflow.Description = *patch.Description
	}
	if patch.IsActive != nil {
		workflow.IsActive = *patch.IsActive
	}
	if err := s.store.UpdateWorkflow(r.Context(), workflow); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}

	// Steps or edges present in the body replace the graph atomically.
	if patch.Steps != nil || patch.Edges != nil {
		for _, step := range patch.Steps {
			if step.ID == "" {
				step.ID = uuid.NewString()
			}
			if !step.Kind.Valid() {
				httputil.WriteError(w, http.StatusBadRequest,
					"unknown step kind: "+string(step.Kind))
				return
			}
		}
		for _, edge := range patch.Edges {
			if edge.ID == "" {
				edge.ID = uuid.NewString()
			}
		}
		if err := s.store.ReplaceGraph(r.Context(), id, patch.Steps, patch.Edges); err != nil {
			httputil.WriteErrorFrom(w, err)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

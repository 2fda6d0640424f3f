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
	"net/http"

	"github.com/flowline/flowline/internal/api/httputil"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/trigger"
)

// handleExecute starts a manual run and blocks until terminal status.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	execution, err := s.engine.StartRun(r.Context(), r.PathValue("id"), trigger.Manual())
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, execution)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetWorkflow(r.Context(), id); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	executions, err := s.store.ListExecutions(r.Context(), id)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	if executions == nil {
		executions = []*store.Execution{}
	}
	httputil.WriteJSON(w, http.StatusOK, executions)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := s.store.GetExecution(r.Context(), r.PathValue("id"))
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, execution)
}

func (s *Server) handleListStepExecutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetExecution(r.Context(), id); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	records, err := s.store.ListStepExecutions(r.Context(), id)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	if records == nil {
		records = []*store.StepExecution{}
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

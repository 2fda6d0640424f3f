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

// Credential values never leave the API; store.Credential marshals without
// its Value field.

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	credentials, err := s.store.ListCredentials(r.Context())
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	if credentials == nil {
		credentials = []*store.Credential{}
	}
	httputil.WriteJSON(w, http.StatusOK, credentials)
}

func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" || body.Type == "" || body.Value == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name, type, and value are required")
		return
	}

	credential := &store.Credential{
		ID:    uuid.NewString(),
		Name:  body.Name,
		Type:  body.Type,
		Value: body.Value,
	}
	if err := s.store.CreateCredential(r.Context(), credential); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credential)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCredential(r.Context(), r.PathValue("id")); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

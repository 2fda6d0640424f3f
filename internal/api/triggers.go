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
	"io"
	"net/http"

	"github.com/flowline/flowline/internal/api/httputil"
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Webhook-Signature"

// maxTriggerBody bounds inbound trigger payloads.
const maxTriggerBody = 1 << 20

// handleWebhook admits a webhook-triggered run, responding 202 with the run
// id without awaiting terminal status.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTriggerBody))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	runID, err := s.gateway.HandleWebhook(r.Context(), r.PathValue("webhookId"),
		body, r.Header.Get(SignatureHeader), headers, query)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"executionId": runID})
}

// handleEvent fans an application event out to matching active workflows.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventType string         `json:"eventType"`
		Payload   map[string]any `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.EventType == "" {
		httputil.WriteError(w, http.StatusBadRequest, "eventType is required")
		return
	}

	runIDs, err := s.gateway.HandleEvent(r.Context(), body.EventType, body.Payload)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string][]string{"executionIds": runIDs})
}

// handleChain starts the target workflow seeded with this workflow's most
// recent completed run's outputs.
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetWorkflowID string `json:"targetWorkflowId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.TargetWorkflowID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "targetWorkflowId is required")
		return
	}

	runID, err := s.gateway.HandleChain(r.Context(), r.PathValue("id"), body.TargetWorkflowID)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"executionId": runID})
}

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

// Package httputil provides shared JSON response helpers for API handlers.
package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/flowline/flowline/pkg/errors"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteErrorFrom maps an error to its HTTP status and writes it, carrying
// the engine code when present.
func WriteErrorFrom(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFromError(err), ErrorResponse{
		Error: err.Error(),
		Code:  string(errors.CodeOf(err)),
	})
}

// StatusFromError maps domain errors to HTTP status codes.
func StatusFromError(err error) int {
	var notFound *errors.NotFoundError
	if stderrors.As(err, &notFound) {
		return http.StatusNotFound
	}
	var validation *errors.ValidationError
	if stderrors.As(err, &validation) {
		return http.StatusBadRequest
	}

	switch errors.CodeOf(err) {
	case errors.CodeWebhookSignatureMissing, errors.CodeWebhookSignatureInvalid:
		return http.StatusUnauthorized
	case errors.CodeWorkflowNotFound, errors.CodeStepNotFound:
		return http.StatusNotFound
	case errors.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

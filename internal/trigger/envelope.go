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

// Package trigger admits runs into the engine: the typed envelope variants
// and the gateway that matches webhooks, app events, and workflow chains to
// trigger steps.
package trigger

import (
	"github.com/flowline/flowline/internal/store"
)

// Type tags an envelope variant.
type Type string

const (
	TypeManual   Type = "manual"
	TypeWebhook  Type = "webhook"
	TypeAppEvent Type = "app_event"
	TypeWorkflow Type = "workflow"
)

// Envelope is the tagged trigger payload admitted into a run. Only the
// fields of the tagged variant are set.
type Envelope struct {
	Type Type

	// Webhook fields.
	Payload map[string]any
	Headers map[string]string
	Query   map[string]string

	// App event fields. Payload is shared with the webhook variant.
	EventType string

	// Workflow chain fields.
	SourceWorkflowID  string
	SourceExecutionID string
	Outputs           map[string]any
}

// Manual returns a manual trigger envelope.
func Manual() Envelope {
	return Envelope{Type: TypeManual}
}

// Webhook returns a webhook trigger envelope.
func Webhook(payload map[string]any, headers, query map[string]string) Envelope {
	return Envelope{Type: TypeWebhook, Payload: payload, Headers: headers, Query: query}
}

// AppEvent returns an application event envelope.
func AppEvent(eventType string, payload map[string]any) Envelope {
	return Envelope{Type: TypeAppEvent, EventType: eventType, Payload: payload}
}

// Chain returns a workflow chaining envelope carrying the source run's
// outputs.
func Chain(sourceWorkflowID, sourceExecutionID string, outputs map[string]any) Envelope {
	return Envelope{
		Type:              TypeWorkflow,
		SourceWorkflowID:  sourceWorkflowID,
		SourceExecutionID: sourceExecutionID,
		Outputs:           outputs,
	}
}

// StepKind returns the trigger step kind this envelope matches.
func (e Envelope) StepKind() store.StepKind {
	switch e.Type {
	case TypeWebhook:
		return store.KindWebhookTrigger
	case TypeAppEvent:
		return store.KindAppEventTrigger
	case TypeWorkflow:
		return store.KindWorkflowTrigger
	default:
		return store.KindManualTrigger
	}
}

// Seed returns the value the engine writes under the trigger step's id at
// run start: {triggered: true, triggerType, ...envelope fields}.
func (e Envelope) Seed() map[string]any {
	seed := map[string]any{
		"triggered":   true,
		"triggerType": string(e.Type),
	}
	switch e.Type {
	case TypeWebhook:
		if e.Payload != nil {
			seed["payload"] = e.Payload
		}
		if e.Headers != nil {
			seed["headers"] = toAnyMap(e.Headers)
		}
		if e.Query != nil {
			seed["query"] = toAnyMap(e.Query)
		}
	case TypeAppEvent:
		seed["eventType"] = e.EventType
		if e.Payload != nil {
			seed["payload"] = e.Payload
		}
	case TypeWorkflow:
		seed["sourceWorkflowId"] = e.SourceWorkflowID
		seed["sourceExecutionId"] = e.SourceExecutionID
	}
	return seed
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

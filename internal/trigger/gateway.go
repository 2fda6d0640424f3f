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

package trigger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/pkg/errors"
)

// Starter admits runs without awaiting terminal status. Satisfied by the
// engine.
type Starter interface {
	StartRunAsync(ctx context.Context, workflowID string, env Envelope) (string, error)
}

// Gateway matches inbound webhook, event, and chain requests to trigger
// steps across active workflows and admits runs through a Starter.
type Gateway struct {
	store   store.Store
	starter Starter
	logger  *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(st store.Store, starter Starter, logger *slog.Logger) *Gateway {
	return &Gateway{store: st, starter: starter, logger: logger}
}

// HandleWebhook matches webhookID against webhook_trigger steps of active
// workflows, verifies the HMAC signature when the step declares a secret,
// and starts a run. Returns the run id.
func (g *Gateway) HandleWebhook(ctx context.Context, webhookID string, body []byte, signature string, headers, query map[string]string) (string, error) {
	workflowID, step, err := g.findWebhookStep(ctx, webhookID)
	if err != nil {
		return "", err
	}

	if secret, ok := step.Config["secret"].(string); ok && secret != "" {
		if err := VerifySignature(secret, body, signature); err != nil {
			return "", err
		}
	}

	payload := parsePayload(body)
	runID, err := g.starter.StartRunAsync(ctx, workflowID, Webhook(payload, headers, query))
	if err != nil {
		return "", err
	}
	g.logger.Info("webhook run admitted",
		slog.String("webhook_id", webhookID),
		slog.String("run_id", runID))
	return runID, nil
}

// HandleEvent fans an application event out to every active workflow with a
// matching app_event_trigger step. Returns the admitted run ids.
func (g *Gateway) HandleEvent(ctx context.Context, eventType string, payload map[string]any) ([]string, error) {
	workflows, err := g.store.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}

	var runIDs []string
	for _, w := range workflows {
		if !w.IsActive {
			continue
		}
		steps, err := g.store.GetSteps(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		for _, step := range steps {
			if step.Kind != store.KindAppEventTrigger {
				continue
			}
			if stepEvent, _ := step.Config["eventType"].(string); stepEvent != eventType {
				continue
			}
			runID, err := g.starter.StartRunAsync(ctx, w.ID, AppEvent(eventType, payload))
			if err != nil {
				return nil, err
			}
			runIDs = append(runIDs, runID)
			break
		}
	}

	if len(runIDs) == 0 {
		return nil, &errors.NotFoundError{Resource: "event trigger", ID: eventType}
	}
	g.logger.Info("event fanned out",
		slog.String("event_type", eventType),
		slog.Int("runs", len(runIDs)))
	return runIDs, nil
}

// HandleChain starts the target workflow with the source workflow's most
// recent completed run's outputs merged in. The source's latest run must be
// completed.
func (g *Gateway) HandleChain(ctx context.Context, sourceWorkflowID, targetWorkflowID string) (string, error) {
	executions, err := g.store.ListExecutions(ctx, sourceWorkflowID)
	if err != nil {
		return "", err
	}
	if len(executions) == 0 {
		return "", &errors.ValidationError{
			Field:   "sourceWorkflowId",
			Message: "source workflow has no runs",
		}
	}
	latest := executions[0]
	if latest.Status != store.ExecutionCompleted {
		return "", &errors.ValidationError{
			Field:      "sourceWorkflowId",
			Message:    "source workflow's most recent run is " + string(latest.Status),
			Suggestion: "wait for the source run to complete",
		}
	}

	return g.starter.StartRunAsync(ctx, targetWorkflowID,
		Chain(sourceWorkflowID, latest.ID, latest.Outputs))
}

// findWebhookStep scans active workflows for a webhook_trigger step whose
// config.webhookId matches.
func (g *Gateway) findWebhookStep(ctx context.Context, webhookID string) (string, *store.Step, error) {
	workflows, err := g.store.ListWorkflows(ctx)
	if err != nil {
		return "", nil, err
	}
	for _, w := range workflows {
		if !w.IsActive {
			continue
		}
		steps, err := g.store.GetSteps(ctx, w.ID)
		if err != nil {
			return "", nil, err
		}
		for _, step := range steps {
			if step.Kind != store.KindWebhookTrigger {
				continue
			}
			if id, _ := step.Config["webhookId"].(string); id == webhookID {
				return w.ID, step, nil
			}
		}
	}
	return "", nil, &errors.NotFoundError{Resource: "webhook", ID: webhookID}
}

// VerifySignature checks an X-Webhook-Signature header value against the
// HMAC-SHA256 of the raw body. An optional "sha256=" prefix is accepted.
// Comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return errors.New(errors.CodeWebhookSignatureMissing, "missing webhook signature")
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New(errors.CodeWebhookSignatureInvalid, "invalid webhook signature")
	}
	return nil
}

// parsePayload decodes a JSON object body; anything else is carried raw.
func parsePayload(body []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return map[string]any{"raw": string(body)}
	}
	return payload
}

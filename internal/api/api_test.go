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
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/flowline/internal/engine"
	"github.com/flowline/flowline/internal/llm"
	"github.com/flowline/flowline/internal/log"
	"github.com/flowline/flowline/internal/metrics"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/store/memory"
	"github.com/flowline/flowline/internal/trigger"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	logger := log.New(&log.Config{Level: "error", Output: io.Discard})
	eng := engine.New(engine.Config{
		Store:    st,
		Provider: &llm.Mock{},
		Logger:   logger,
		Metrics:  metrics.New(),
	})
	gateway := trigger.NewGateway(st, eng, logger)
	srv := NewServer(Config{
		Store:   st,
		Engine:  eng,
		Gateway: gateway,
		Logger:  logger,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeInto(t *testing.T, raw []byte, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, target), "body: %s", raw)
}

func TestWorkflowGraphRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/workflows", map[string]any{
		"name":        "orders",
		"description": "order pipeline",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var created store.Workflow
	decodeInto(t, raw, &created)
	require.NotEmpty(t, created.ID)

	patch := map[string]any{
		"isActive": true,
		"steps": []map[string]any{
			{"id": "trig", "kind": "manual_trigger", "order": 0},
			{
				"id": "double", "kind": "code", "order": 1,
				"config":   map[string]any{"code": "inputs.trig.triggered ? 2 : 0"},
				"position": map[string]any{"x": 100, "y": 50},
			},
		},
		"edges": []map[string]any{
			{"id": "e1", "sourceId": "trig", "targetId": "double"},
		},
	}
	resp, raw = doJSON(t, http.MethodPatch, ts.URL+"/api/workflows/"+created.ID, patch)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	// Reading back returns the same graph.
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		store.Workflow
		Steps []*store.Step `json:"steps"`
		Edges []*store.Edge `json:"edges"`
	}
	decodeInto(t, raw, &detail)
	assert.True(t, detail.IsActive)
	require.Len(t, detail.Steps, 2)
	assert.Equal(t, "trig", detail.Steps[0].ID)
	assert.Equal(t, store.KindCode, detail.Steps[1].Kind)
	assert.Equal(t, map[string]any{"code": "inputs.trig.triggered ? 2 : 0"}, detail.Steps[1].Config)
	assert.Equal(t, map[string]any{"x": float64(100), "y": float64(50)}, detail.Steps[1].Position)
	require.Len(t, detail.Edges, 1)
	assert.Equal(t, "trig", detail.Edges[0].SourceID)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateWorkflowRequiresName(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/workflows", map[string]any{
		"description": "nameless",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatchRejectsUnknownStepKind(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/workflows", map[string]any{"name": "a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created store.Workflow
	decodeInto(t, raw, &created)

	resp, _ = doJSON(t, http.MethodPatch, ts.URL+"/api/workflows/"+created.ID, map[string]any{
		"steps": []map[string]any{{"id": "s1", "kind": "teleport"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteSynchronous(t *testing.T) {
	ts, st := newTestServer(t)
	seedGraph(t, st, "wf", []*store.Step{
		{ID: "trig", Kind: store.KindManualTrigger, Order: 0},
		{ID: "answer", Kind: store.KindCode, Order: 1,
			Config: map[string]any{"code": "return 40 + 2;"}},
	}, []*store.Edge{
		{ID: "e1", SourceID: "trig", TargetID: "answer"},
	})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/workflows/wf/execute", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	var exec store.Execution
	decodeInto(t, raw, &exec)
	assert.Equal(t, store.ExecutionCompleted, exec.Status)
	assert.Equal(t, float64(42), exec.Outputs["answer"])

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/workflows/wf/executions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var executions []*store.Execution
	decodeInto(t, raw, &executions)
	require.Len(t, executions, 1)
	assert.Equal(t, exec.ID, executions[0].ID)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/executions/"+exec.ID+"/steps", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []*store.StepExecution
	decodeInto(t, raw, &records)
	require.Len(t, records, 2)
	assert.Equal(t, "trig", records[0].StepID)
	assert.Equal(t, "answer", records[1].StepID)
	assert.Equal(t, store.StepCompleted, records[1].Status)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/workflows/nope/execute", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookEndToEnd(t *testing.T) {
	ts, st := newTestServer(t)
	seedGraph(t, st, "wf", []*store.Step{
		{ID: "hook", Kind: store.KindWebhookTrigger, Order: 0,
			Config: map[string]any{"webhookId": "wh-1", "secret": "topsecret"}},
		{ID: "transform", Kind: store.KindAITransform, Order: 1,
			Config: map[string]any{
				"input":  "hook.payload.text",
				"prompt": "Transform this: {{input}}",
			}},
	}, []*store.Edge{
		{ID: "e1", SourceID: "hook", TargetID: "transform"},
	})

	body := []byte(`{"text":"hello"}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/webhooks/wh-1", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signBody("topsecret", body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, "body: %s", raw)

	var accepted struct {
		ExecutionID string `json:"executionId"`
	}
	decodeInto(t, raw, &accepted)
	require.NotEmpty(t, accepted.ExecutionID)

	exec := awaitExecution(t, ts.URL, accepted.ExecutionID)
	assert.Equal(t, store.ExecutionCompleted, exec.Status)
	assert.Equal(t, "[MOCK] Transformed: Transform this: hello", exec.Outputs["transform"])

	seed, ok := exec.Outputs["hook"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "webhook", seed["triggerType"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ts, st := newTestServer(t)
	seedGraph(t, st, "wf", []*store.Step{
		{ID: "hook", Kind: store.KindWebhookTrigger, Order: 0,
			Config: map[string]any{"webhookId": "wh-1", "secret": "topsecret"}},
	}, nil)

	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing", signature: ""},
		{name: "wrong key", signature: signBody("other", []byte(`{}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/webhooks/wh-1",
				bytes.NewReader([]byte(`{}`)))
			require.NoError(t, err)
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	// Rejected requests never admit a run.
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/workflows/wf/executions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var executions []*store.Execution
	decodeInto(t, raw, &executions)
	assert.Empty(t, executions)
}

func TestEventFanout(t *testing.T) {
	ts, st := newTestServer(t)
	seedGraph(t, st, "wf-a", []*store.Step{
		{ID: "ev", Kind: store.KindAppEventTrigger,
			Config: map[string]any{"eventType": "user.created"}},
	}, nil)
	seedGraph(t, st, "wf-b", []*store.Step{
		{ID: "ev", Kind: store.KindAppEventTrigger,
			Config: map[string]any{"eventType": "user.created"}},
	}, nil)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/events", map[string]any{
		"eventType": "user.created",
		"payload":   map[string]any{"id": 7},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, "body: %s", raw)

	var accepted struct {
		ExecutionIDs []string `json:"executionIds"`
	}
	decodeInto(t, raw, &accepted)
	assert.Len(t, accepted.ExecutionIDs, 2)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/events", map[string]any{
		"eventType": "unmatched.event",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChainEndpoint(t *testing.T) {
	ts, st := newTestServer(t)
	seedGraph(t, st, "src", []*store.Step{
		{ID: "trig", Kind: store.KindManualTrigger},
	}, nil)
	seedGraph(t, st, "dst", []*store.Step{
		{ID: "echo", Kind: store.KindCode,
			Config: map[string]any{"code": `context.outputs["final"]`}},
	}, nil)

	// Chaining before the source ever ran is a validation error.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/workflows/src/chain", map[string]any{
		"targetWorkflowId": "dst",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/workflows/src/execute", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/workflows/src/chain", map[string]any{
		"targetWorkflowId": "dst",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, "body: %s", raw)

	var accepted struct {
		ExecutionID string `json:"executionId"`
	}
	decodeInto(t, raw, &accepted)
	exec := awaitExecution(t, ts.URL, accepted.ExecutionID)
	assert.Equal(t, store.ExecutionCompleted, exec.Status)
}

func TestCredentialValueNeverReturned(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/credentials", map[string]any{
		"name":  "prod",
		"type":  "anthropic",
		"value": "sk-secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	assert.NotContains(t, string(raw), "sk-secret")

	var created store.Credential
	decodeInto(t, raw, &created)
	require.NotEmpty(t, created.ID)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/credentials", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(raw), "sk-secret")

	var listed []map[string]any
	decodeInto(t, raw, &listed)
	require.Len(t, listed, 1)
	assert.NotContains(t, listed[0], "value")

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/credentials/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCredentialCreateValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/credentials", map[string]any{
		"name": "prod",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func seedGraph(t *testing.T, st *memory.Store, workflowID string, steps []*store.Step, edges []*store.Edge) {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, st.CreateWorkflow(ctx, &store.Workflow{
		ID: workflowID, Name: workflowID, IsActive: true,
	}))
	require.NoError(t, st.ReplaceGraph(ctx, workflowID, steps, edges))
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// awaitExecution polls an async run until it reaches a terminal status.
func awaitExecution(t *testing.T, baseURL, executionID string) *store.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, raw := doJSON(t, http.MethodGet, baseURL+"/api/executions/"+executionID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
		var exec store.Execution
		decodeInto(t, raw, &exec)
		if exec.Status != store.ExecutionRunning {
			return &exec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("execution did not reach a terminal status")
	return nil
}

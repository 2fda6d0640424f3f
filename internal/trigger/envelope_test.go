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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowline/flowline/internal/store"
)

func TestEnvelopeSeed(t *testing.T) {
	tests := []struct {
		name     string
		env      Envelope
		wantKind store.StepKind
		wantSeed map[string]any
	}{
		{
			name:     "manual",
			env:      Manual(),
			wantKind: store.KindManualTrigger,
			wantSeed: map[string]any{
				"triggered":   true,
				"triggerType": "manual",
			},
		},
		{
			name: "webhook",
			env: Webhook(
				map[string]any{"text": "hi"},
				map[string]string{"X-Source": "test"},
				map[string]string{"v": "1"},
			),
			wantKind: store.KindWebhookTrigger,
			wantSeed: map[string]any{
				"triggered":   true,
				"triggerType": "webhook",
				"payload":     map[string]any{"text": "hi"},
				"headers":     map[string]any{"X-Source": "test"},
				"query":       map[string]any{"v": "1"},
			},
		},
		{
			name:     "app event",
			env:      AppEvent("user.created", map[string]any{"id": float64(1)}),
			wantKind: store.KindAppEventTrigger,
			wantSeed: map[string]any{
				"triggered":   true,
				"triggerType": "app_event",
				"eventType":   "user.created",
				"payload":     map[string]any{"id": float64(1)},
			},
		},
		{
			name:     "workflow chain",
			env:      Chain("src-wf", "src-run", map[string]any{"final": "x"}),
			wantKind: store.KindWorkflowTrigger,
			wantSeed: map[string]any{
				"triggered":         true,
				"triggerType":       "workflow",
				"sourceWorkflowId":  "src-wf",
				"sourceExecutionId": "src-run",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.env.StepKind())
			assert.Equal(t, tt.wantSeed, tt.env.Seed())
		})
	}
}

func TestWebhookSeedOmitsNilSections(t *testing.T) {
	seed := Webhook(nil, nil, nil).Seed()
	assert.NotContains(t, seed, "payload")
	assert.NotContains(t, seed, "headers")
	assert.NotContains(t, seed, "query")
}

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

package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/store/memory"
)

func TestMockTextResponses(t *testing.T) {
	mock := &Mock{}

	tests := []struct {
		name   string
		kind   string
		prompt string
		opts   map[string]any
		want   string
	}{
		{
			name:   "basic chain",
			kind:   "basic_llm_chain",
			prompt: "ok",
			want:   "[MOCK] Response to: ok",
		},
		{
			name:   "transform",
			kind:   "ai_transform",
			prompt: "payload",
			want:   "[MOCK] Transformed: payload",
		},
		{
			name:   "qa",
			kind:   "qa_chain",
			prompt: "why?",
			want:   "[MOCK] Answer to: why?",
		},
		{
			name:   "summary default length",
			kind:   "summarization_chain",
			prompt: "long text",
			want:   "[MOCK] Summary (medium): long text",
		},
		{
			name:   "summary explicit length",
			kind:   "summarization_chain",
			prompt: "long text",
			opts:   map[string]any{OptionLength: "short"},
			want:   "[MOCK] Summary (short): long text",
		},
		{
			name:   "unknown kind falls back to response",
			kind:   "",
			prompt: "hello",
			want:   "[MOCK] Response to: hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := map[string]any{OptionKind: tt.kind}
			for k, v := range tt.opts {
				options[k] = v
			}
			got, err := mock.Complete(context.Background(), tt.prompt, options)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMockJSONResponses(t *testing.T) {
	mock := &Mock{}

	text, err := mock.Complete(context.Background(), "text", map[string]any{
		OptionKind: "sentiment_analysis",
	})
	require.NoError(t, err)
	var sentiment map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &sentiment))
	assert.Equal(t, "positive", sentiment["sentiment"])
	assert.Equal(t, 0.8, sentiment["score"])

	text, err = mock.Complete(context.Background(), "text", map[string]any{
		OptionKind:       "text_classifier",
		OptionCategories: []string{"urgent", "routine"},
	})
	require.NoError(t, err)
	var classification map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &classification))
	assert.Equal(t, "urgent", classification["category"])
	assert.Equal(t, 0.9, classification["confidence"])

	text, err = mock.Complete(context.Background(), "text", map[string]any{
		OptionKind: "information_extractor",
	})
	require.NoError(t, err)
	var extraction map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &extraction))
	assert.Equal(t, true, extraction["extracted"])
}

func TestMockDeterminism(t *testing.T) {
	mock := &Mock{}
	options := map[string]any{OptionKind: "ai_transform"}

	first, err := mock.Complete(context.Background(), "same", options)
	require.NoError(t, err)
	second, err := mock.Complete(context.Background(), "same", options)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	t.Setenv("ANTHROPIC_API_KEY", "")

	provider := Resolve(ctx, "", memory.New())
	assert.IsType(t, &Mock{}, provider)

	provider = Resolve(ctx, "sk-test", memory.New())
	assert.IsType(t, &Anthropic{}, provider)

	st := memory.New()
	require.NoError(t, st.CreateCredential(ctx, &store.Credential{
		ID:    "c1",
		Name:  "prod",
		Type:  CredentialType,
		Value: "sk-stored",
	}))
	provider = Resolve(ctx, "", st)
	assert.IsType(t, &Anthropic{}, provider)
}

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
	"fmt"
	"time"

	"github.com/flowline/flowline/internal/store"
)

// MockDelay is the simulated latency per completion. Tests set Delay to 0.
const MockDelay = 500 * time.Millisecond

// Compile-time interface assertion.
var _ Provider = (*Mock)(nil)

// Mock is a deterministic provider used when no credential is configured.
// Responses are pure functions of the prompt and options, prefixed "[MOCK] "
// so runs are visibly synthetic.
type Mock struct {
	// Delay is the simulated per-call latency.
	Delay time.Duration
}

// NewMock creates a mock provider with the default simulated latency.
func NewMock() *Mock {
	return &Mock{Delay: MockDelay}
}

// Complete returns a deterministic response shaped by the requesting step
// kind carried in options.
func (m *Mock) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	kind := store.StepKind(stringOption(options, OptionKind, ""))
	switch kind {
	case store.KindAITransform:
		return "[MOCK] Transformed: " + prompt, nil
	case store.KindQAChain:
		return "[MOCK] Answer to: " + prompt, nil
	case store.KindSummarizationChain:
		length := stringOption(options, OptionLength, "medium")
		return fmt.Sprintf("[MOCK] Summary (%s): %s", length, prompt), nil
	case store.KindSentimentAnalysis:
		return marshalJSON(map[string]any{
			"sentiment":   "positive",
			"score":       0.8,
			"explanation": "[MOCK] sentiment analysis",
		})
	case store.KindTextClassifier:
		category := "unknown"
		if categories, ok := options[OptionCategories].([]string); ok && len(categories) > 0 {
			category = categories[0]
		}
		return marshalJSON(map[string]any{
			"category":    category,
			"confidence":  0.9,
			"explanation": "[MOCK] classification",
		})
	case store.KindInformationExtractor:
		return marshalJSON(map[string]any{
			"extracted": true,
			"note":      "[MOCK] extraction",
		})
	default:
		return "[MOCK] Response to: " + prompt, nil
	}
}

func marshalJSON(v map[string]any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

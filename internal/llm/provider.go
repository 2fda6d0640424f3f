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

// Package llm provides the completion capability used by AI step handlers:
// a live Anthropic client when a credential is configured, otherwise a
// deterministic mock.
package llm

import (
	"context"
	"os"

	"github.com/flowline/flowline/internal/store"
)

// Option keys recognized in the options map passed to Complete. Absent keys
// take provider defaults.
const (
	OptionModel       = "model"       // string
	OptionMaxTokens   = "max_tokens"  // int
	OptionTemperature = "temperature" // float64

	// OptionKind carries the requesting step kind so the mock can shape
	// its deterministic response. The live provider ignores it.
	OptionKind = "kind" // string

	// OptionCategories and OptionLength carry classifier categories and
	// summarization length through to the mock.
	OptionCategories = "categories" // []string
	OptionLength     = "length"     // string
)

// Provider defaults.
const (
	DefaultModel       = "claude-sonnet-4-5"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// Provider is the single completion capability handlers depend on.
type Provider interface {
	// Complete sends a prompt and returns the completion text. JSON-shaped
	// responses come back as text for the handler to parse.
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)
}

// CredentialType is the credential record type consulted when no
// environment key is configured.
const CredentialType = "anthropic"

// Resolve picks the provider: an environment-configured key wins, then a
// stored credential of type "anthropic", otherwise the deterministic mock.
func Resolve(ctx context.Context, apiKey string, credentials store.CredentialStore) Provider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" && credentials != nil {
		if list, err := credentials.ListCredentials(ctx); err == nil {
			for _, c := range list {
				if c.Type == CredentialType && c.Value != "" {
					apiKey = c.Value
					break
				}
			}
		}
	}
	if apiKey == "" {
		return NewMock()
	}
	return NewAnthropic(apiKey)
}

func stringOption(options map[string]any, key, fallback string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intOption(options map[string]any, key string, fallback int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func floatOption(options map[string]any, key string, fallback float64) float64 {
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

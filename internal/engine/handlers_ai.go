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

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowline/flowline/internal/llm"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/template"
	"github.com/flowline/flowline/pkg/errors"
)

// llmOptions builds the options map for a completion: model, token, and
// temperature settings from the step config, plus the step kind so the mock
// can shape its response.
func llmOptions(step *store.Step, temperature float64) map[string]any {
	options := map[string]any{
		llm.OptionKind: string(step.Kind),
	}
	if model, ok := step.Config["model"].(string); ok && model != "" {
		options[llm.OptionModel] = model
	}
	if maxTokens, ok := numericConfig(step.Config, "maxTokens"); ok {
		options[llm.OptionMaxTokens] = int(maxTokens)
	}
	if t, ok := numericConfig(step.Config, "temperature"); ok {
		options[llm.OptionTemperature] = t
	} else if temperature >= 0 {
		options[llm.OptionTemperature] = temperature
	}
	return options
}

func numericConfig(config map[string]any, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// handleBasicLLMChain resolves config.prompt against the inputs view and
// returns the completion text.
func handleBasicLLMChain(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	promptTmpl, _ := step.Config["prompt"].(string)
	if promptTmpl == "" {
		return stepResult{}, &errors.ValidationError{
			Field:   "prompt",
			Message: "basic_llm_chain step requires config.prompt",
		}
	}

	prompt := template.Resolve(promptTmpl, sc.inputsFor(step.ID))
	text, err := sc.run.engine.complete(ctx, prompt, llmOptions(step, -1))
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{value: text}, nil
}

// handleAITransform picks the value at config.input, threads it through the
// prompt template (default "Transform this: {{_all}}"), and returns the
// completion text.
func handleAITransform(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	data := sc.inputsFor(step.ID)
	if path, ok := step.Config["input"].(string); ok && path != "" {
		if value, found := sc.lookup(path, step.ID); found {
			data["input"] = value
		}
	}

	promptTmpl, _ := step.Config["prompt"].(string)
	if promptTmpl == "" {
		promptTmpl = "Transform this: {{_all}}"
	}

	prompt := template.Resolve(promptTmpl, data)
	text, err := sc.run.engine.complete(ctx, prompt, llmOptions(step, -1))
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{value: text}, nil
}

// handleInformationExtractor prompts for JSON extraction against
// config.schema at temperature 0.1. Unparseable responses fall back to the
// raw text.
func handleInformationExtractor(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	input := template.Stringify(sc.inputsFor(step.ID)[template.AllKey])
	if path, ok := step.Config["input"].(string); ok && path != "" {
		if value, found := sc.lookup(path, step.ID); found {
			input = template.Stringify(value)
		}
	}

	schema := template.Stringify(step.Config["schema"])
	prompt := fmt.Sprintf(
		"Extract structured data from the following text as a JSON object matching this schema: %s\n\nText:\n%s\n\nRespond with JSON only.",
		schema, input)

	text, err := sc.run.engine.complete(ctx, prompt, llmOptions(step, 0.1))
	if err != nil {
		return stepResult{}, err
	}
	if parsed, ok := extractJSON(text); ok {
		return stepResult{value: parsed}, nil
	}
	return stepResult{value: text}, nil
}

// handleQAChain resolves config.context as a path and config.question as a
// template, then asks the model to answer from the context.
func handleQAChain(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	inputs := sc.inputsFor(step.ID)

	contextText := ""
	if path, ok := step.Config["context"].(string); ok && path != "" {
		if value, found := sc.lookup(path, step.ID); found {
			contextText = template.Stringify(value)
		}
	}
	question := ""
	if tmpl, ok := step.Config["question"].(string); ok {
		question = template.Resolve(tmpl, inputs)
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer based on the context.",
		contextText, question)
	text, err := sc.run.engine.complete(ctx, prompt, llmOptions(step, -1))
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{value: text}, nil
}

// handleSentimentAnalysis prompts for {sentiment, score, explanation} at
// temperature 0.2, falling back to a neutral object when the response is not
// JSON.
func handleSentimentAnalysis(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	input := resolveAIInput(sc, step)
	prompt := fmt.Sprintf(
		"Analyze the sentiment of the following text. Respond with a JSON object {\"sentiment\": \"positive\"|\"negative\"|\"neutral\", \"score\": number in [-1,1], \"explanation\": string}.\n\nText:\n%s",
		input)

	text, err := sc.run.engine.complete(ctx, prompt, llmOptions(step, 0.2))
	if err != nil {
		return stepResult{}, err
	}
	if parsed, ok := extractJSON(text); ok {
		return stepResult{value: parsed}, nil
	}
	return stepResult{value: map[string]any{
		"sentiment":   "neutral",
		"score":       0,
		"explanation": text,
	}}, nil
}

// handleSummarizationChain prompts for a summary at the configured length
// (short|medium|long, default medium) and returns text.
func handleSummarizationChain(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	length, _ := step.Config["length"].(string)
	if length == "" {
		length = "medium"
	}

	input := resolveAIInput(sc, step)
	prompt := fmt.Sprintf("Provide a %s summary of the following text:\n%s", length, input)

	options := llmOptions(step, -1)
	options[llm.OptionLength] = length

	text, err := sc.run.engine.complete(ctx, prompt, options)
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{value: text}, nil
}

// handleTextClassifier prompts for classification into config.categories at
// temperature 0.2 with the same fallback policy as sentiment analysis.
func handleTextClassifier(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	categories, err := stringSlice(step.Config["categories"])
	if err != nil || len(categories) == 0 {
		categories = []string{"positive", "negative", "neutral"}
	}

	input := resolveAIInput(sc, step)
	prompt := fmt.Sprintf(
		"Classify the following text into one of these categories: %s. Respond with a JSON object {\"category\": string, \"confidence\": number in [0,1], \"explanation\": string}.\n\nText:\n%s",
		strings.Join(categories, ", "), input)

	options := llmOptions(step, 0.2)
	options[llm.OptionCategories] = categories

	text, err := sc.run.engine.complete(ctx, prompt, options)
	if err != nil {
		return stepResult{}, err
	}
	if parsed, ok := extractJSON(text); ok {
		return stepResult{value: parsed}, nil
	}
	return stepResult{value: map[string]any{
		"category":    "unknown",
		"confidence":  0,
		"explanation": text,
	}}, nil
}

// resolveAIInput picks config.input from the scope when present, otherwise
// the whole inputs view, stringified for prompting.
func resolveAIInput(sc *scope, step *store.Step) string {
	if path, ok := step.Config["input"].(string); ok && path != "" {
		if value, found := sc.lookup(path, step.ID); found {
			return template.Stringify(value)
		}
	}
	return template.Stringify(sc.inputsFor(step.ID)[template.AllKey])
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON pulls a JSON object out of a model response: a fenced code
// block first, otherwise the first balanced {...} substring.
func extractJSON(text string) (map[string]any, bool) {
	candidate := text
	if match := fencedJSONPattern.FindStringSubmatch(text); match != nil {
		candidate = match[1]
	} else if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			candidate = text[start : end+1]
		}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

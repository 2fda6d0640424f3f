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
	"strconv"
	"strings"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/template"
	"github.com/flowline/flowline/pkg/errors"
)

// handleCondition evaluates config.condition as a boolean and selects the
// outgoing edges labelled with the result; the other branch is pruned for
// this run.
func handleCondition(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	condition, _ := step.Config["condition"].(string)
	if condition == "" {
		return stepResult{}, &errors.ValidationError{
			Field:   "condition",
			Message: "condition step requires config.condition",
		}
	}

	result, err := sc.run.engine.sandbox.Bool(condition, sc.sandboxEnv(step.ID))
	if err != nil {
		return stepResult{}, err
	}

	label := strconv.FormatBool(result)
	var selected, dropped []*store.Edge
	for _, edge := range sc.run.adjacency[step.ID] {
		if edge.Label == label {
			selected = append(selected, edge)
		} else {
			dropped = append(dropped, edge)
		}
	}
	sc.markPruned(dropped)

	return stepResult{
		value:     map[string]any{"condition": result, "result": result},
		next:      sc.run.successors(selected),
		exclusive: true,
	}, nil
}

// handleSwitch evaluates config.expression and selects the edge whose label
// equals the stringified value, falling back to "default". With neither, no
// successor is taken; that is the one non-fatal engine error.
func handleSwitch(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	expression, _ := step.Config["expression"].(string)
	if expression == "" {
		return stepResult{}, &errors.ValidationError{
			Field:   "expression",
			Message: "switch step requires config.expression",
		}
	}

	value, err := sc.run.engine.sandbox.Value(expression, sc.sandboxEnv(step.ID))
	if err != nil {
		return stepResult{}, err
	}

	label := template.Stringify(value)
	selected := edgesByLabel(sc.run.adjacency[step.ID], label)
	if len(selected) == 0 {
		selected = edgesByLabel(sc.run.adjacency[step.ID], "default")
	}
	if len(selected) == 0 {
		sc.run.logger.Warn("switch resolved no branch",
			"step_id", step.ID,
			"code", string(errors.CodeBranchUnresolved),
			"value", label)
	}

	var dropped []*store.Edge
	for _, edge := range sc.run.adjacency[step.ID] {
		taken := false
		for _, sel := range selected {
			if sel.ID == edge.ID {
				taken = true
				break
			}
		}
		if !taken {
			dropped = append(dropped, edge)
		}
	}
	sc.markPruned(dropped)

	return stepResult{
		value:     map[string]any{"switchValue": value},
		next:      sc.run.successors(selected),
		exclusive: true,
	}, nil
}

func edgesByLabel(edges []*store.Edge, label string) []*store.Edge {
	var out []*store.Edge
	for _, edge := range edges {
		if edge.Label == label {
			out = append(out, edge)
		}
	}
	return out
}

// handleLoop resolves config.input to an array and runs every outgoing
// subtree once per item inside a scoped overlay that shadows currentItem.
// The loop's own output is an array of arrays: outer index item, inner index
// successor.
func handleLoop(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	items, err := resolveArray(sc, step, "input")
	if err != nil {
		return stepResult{}, err
	}

	successors := sc.run.successors(sc.run.adjacency[step.ID])

	results := make([]any, 0, len(items))
	for _, item := range items {
		// The child scope inherits the call path, loop step included, so a
		// cycle back into the loop still trips detection.
		iteration := sc.childScope(item)

		perSuccessor := make([]any, 0, len(successors))
		for _, successorID := range successors {
			if err := iteration.visit(ctx, successorID); err != nil {
				return stepResult{}, err
			}
			perSuccessor = append(perSuccessor, iteration.outputs[successorID])
		}
		results = append(results, perSuccessor)
	}

	// The loop drives its own children; the traversal takes no successor,
	// and downstream fan-in must not wait on the loop's edges.
	sc.markPruned(sc.run.adjacency[step.ID])
	return stepResult{value: results, exclusive: true}, nil
}

// handleFilter resolves config.input to an array and keeps the elements for
// which config.predicate holds. Successors run normally on the filtered
// array.
func handleFilter(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	items, err := resolveArray(sc, step, "input")
	if err != nil {
		return stepResult{}, err
	}
	predicate, _ := step.Config["predicate"].(string)
	if predicate == "" {
		return stepResult{}, &errors.ValidationError{
			Field:   "predicate",
			Message: "filter step requires config.predicate",
		}
	}

	env := sc.sandboxEnv(step.ID)
	filtered := make([]any, 0, len(items))
	for i, item := range items {
		keep, err := sc.run.engine.sandbox.Predicate(predicate, item, i, items, env)
		if err != nil {
			return stepResult{}, err
		}
		if keep {
			filtered = append(filtered, item)
		}
	}
	return stepResult{value: filtered}, nil
}

// handleMerge combines the values at config.inputs into one object. Dotted
// paths assign under their last segment; bare paths shallow-merge maps.
// Later entries win.
func handleMerge(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	paths, err := stringSlice(step.Config["inputs"])
	if err != nil {
		return stepResult{}, &errors.ValidationError{
			Field:   "inputs",
			Message: "merge step requires config.inputs as a list of paths",
		}
	}

	merged := make(map[string]any)
	for _, path := range paths {
		value, ok := sc.lookup(path, step.ID)
		if !ok {
			continue
		}
		if strings.Contains(path, ".") {
			segments := strings.Split(path, ".")
			merged[segments[len(segments)-1]] = value
			continue
		}
		if object, isMap := value.(map[string]any); isMap {
			for k, v := range object {
				merged[k] = v
			}
			continue
		}
		merged[strings.TrimPrefix(path, "$")] = value
	}
	return stepResult{value: merged}, nil
}

// resolveArray resolves the named config path to a []any, failing the step
// with TYPE_ERROR otherwise.
func resolveArray(sc *scope, step *store.Step, field string) ([]any, error) {
	path, _ := step.Config[field].(string)
	if path == "" {
		return nil, &errors.ValidationError{
			Field:   field,
			Message: string(step.Kind) + " step requires config." + field,
		}
	}
	value, ok := sc.lookup(path, step.ID)
	if !ok {
		return nil, errors.New(errors.CodeTypeError, "%s: path %q resolved to nothing", step.Kind, path)
	}
	items, isArray := value.([]any)
	if !isArray {
		return nil, errors.New(errors.CodeTypeError, "%s: path %q is not an array", step.Kind, path)
	}
	return items, nil
}

func stringSlice(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New(errors.CodeTypeError, "expected string list")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New(errors.CodeTypeError, "expected string list")
	}
}

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
	"strings"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/pkg/errors"
)

// handleTrigger is a pass-through: the engine seeds the trigger step's
// output at run start, so re-entering the step just returns the seed.
func handleTrigger(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	if seed, ok := sc.outputs[step.ID]; ok {
		return stepResult{value: seed}, nil
	}
	return stepResult{value: map[string]any{"triggered": true}}, nil
}

// handleCode evaluates config.code in the sandbox with the inputs and
// context bindings and returns the body's final value.
func handleCode(ctx context.Context, sc *scope, step *store.Step) (stepResult, error) {
	code, _ := step.Config["code"].(string)
	if code == "" {
		return stepResult{}, &errors.ValidationError{
			Field:   "code",
			Message: "code step requires config.code",
		}
	}

	value, err := sc.run.engine.sandbox.Value(normalizeCode(code), sc.sandboxEnv(step.ID))
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{value: value}, nil
}

// normalizeCode accepts bodies written as "return <expr>;" and reduces them
// to the bare expression the sandbox evaluates.
func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "return ")
	return strings.TrimSuffix(strings.TrimSpace(code), ";")
}

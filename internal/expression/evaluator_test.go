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

package expression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/flowline/pkg/errors"
)

func TestBool(t *testing.T) {
	e := New(0)

	env := map[string]any{
		"inputs": map[string]any{"value": float64(10)},
		"context": map[string]any{
			"outputs": map[string]any{
				"step1": map[string]any{"ok": true},
			},
		},
	}

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{"input comparison", `inputs.value > 5`, true},
		{"outputs traversal", `context.outputs.step1.ok`, true},
		{"bracket indexing", `context.outputs["step1"].ok == true`, true},
		{"false result", `inputs.value > 100`, false},
		{"undefined variable is nil", `missing == nil`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Bool(tt.expression, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolNonBoolean(t *testing.T) {
	e := New(0)
	_, err := e.Bool(`1 + 1`, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeSandboxError, errors.CodeOf(err))
}

func TestValue(t *testing.T) {
	e := New(0)

	value, err := e.Value(`{value: inputs.n * 2}`, map[string]any{
		"inputs": map[string]any{"n": 21},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": 42}, value)
}

func TestValueCompileError(t *testing.T) {
	e := New(0)
	_, err := e.Value(`1 +`, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeSandboxError, errors.CodeOf(err))
}

func TestPredicate(t *testing.T) {
	e := New(0)
	array := []any{1, 2, 3, 4}

	var kept []any
	for i, item := range array {
		keep, err := e.Predicate(`item > 2`, item, i, array, nil)
		require.NoError(t, err)
		if keep {
			kept = append(kept, item)
		}
	}
	assert.Equal(t, []any{3, 4}, kept)

	keep, err := e.Predicate(`index == 0 && len(array) == 4`, array[0], 0, array, nil)
	require.NoError(t, err)
	assert.True(t, keep)
}

func TestTimeout(t *testing.T) {
	e := New(50 * time.Millisecond)

	env := map[string]any{
		"spin": func() bool {
			time.Sleep(time.Second)
			return true
		},
	}
	_, err := e.Bool(`spin()`, env)
	require.Error(t, err)
	assert.Equal(t, errors.CodeSandboxTimeout, errors.CodeOf(err))
}

func TestCompileCache(t *testing.T) {
	e := New(0)

	for range 3 {
		got, err := e.Bool(`inputs.x > 1`, map[string]any{
			"inputs": map[string]any{"x": 2},
		})
		require.NoError(t, err)
		assert.True(t, got)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 1)
}

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

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data map[string]any
		want string
	}{
		{
			name: "nested path",
			tmpl: "{{a.b}}",
			data: map[string]any{"a": map[string]any{"b": "x"}},
			want: "x",
		},
		{
			name: "missing path leaves placeholder intact",
			tmpl: "{{missing}}",
			data: map[string]any{},
			want: "{{missing}}",
		},
		{
			name: "dollar prefix stripped",
			tmpl: "{{$a.b}}",
			data: map[string]any{"a": map[string]any{"b": "x"}},
			want: "x",
		},
		{
			name: "surrounding text preserved",
			tmpl: "value is {{a}}!",
			data: map[string]any{"a": float64(42)},
			want: "value is 42!",
		},
		{
			name: "whole map via _all",
			tmpl: "{{_all}}",
			data: map[string]any{"k": "v"},
			want: `{"k":"v"}`,
		},
		{
			name: "multiple placeholders",
			tmpl: "{{a}}-{{b}}",
			data: map[string]any{"a": "1", "b": "2"},
			want: "1-2",
		},
		{
			name: "inner whitespace tolerated",
			tmpl: "{{ a.b }}",
			data: map[string]any{"a": map[string]any{"b": "x"}},
			want: "x",
		},
		{
			name: "array index segment",
			tmpl: "{{items.1}}",
			data: map[string]any{"items": []any{"a", "b"}},
			want: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.tmpl, tt.data))
		})
	}
}

func TestLookup(t *testing.T) {
	data := map[string]any{
		"step1": map[string]any{
			"items": []any{float64(1), float64(2)},
		},
	}

	value, ok := Lookup("step1.items", data)
	assert.True(t, ok)
	assert.Equal(t, []any{float64(1), float64(2)}, value)

	value, ok = Lookup("$step1.items.0", data)
	assert.True(t, ok)
	assert.Equal(t, float64(1), value)

	all, ok := Lookup("_all", data)
	assert.True(t, ok)
	assert.Equal(t, data, all)

	_, ok = Lookup("step1.nope", data)
	assert.False(t, ok)

	_, ok = Lookup("", data)
	assert.False(t, ok)

	_, ok = Lookup("step1.items.7", data)
	assert.False(t, ok)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
	assert.Equal(t, `[1,2]`, Stringify([]any{1, 2}))
}

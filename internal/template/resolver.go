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

// Package template threads step outputs into step configuration: {{path}}
// placeholders in strings, and bare dotted path expressions.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// placeholderPattern matches {{ path }} placeholders, tolerating inner
// whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// AllKey is the path that resolves to the whole inputs map.
const AllKey = "_all"

// Resolve substitutes every {{path}} placeholder in tmpl with the value at
// that path in data. Placeholders whose path does not resolve are left
// intact, so a template can round-trip through a run that never produced
// the referenced output.
func Resolve(tmpl string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := Lookup(path, data)
		if !ok {
			return match
		}
		return Stringify(value)
	})
}

// Lookup resolves a dotted path expression against data. A leading "$" is
// stripped, and the literal "_all" resolves to data itself. Intermediate
// segments traverse maps by key and slices by integer index.
func Lookup(path string, data map[string]any) (any, bool) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return nil, false
	}
	if path == AllKey {
		return data, true
	}

	var current any = data
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Stringify renders a resolved value for placeholder substitution. Strings
// pass through unquoted; composite values render as compact JSON.
func Stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(data)
	}
}

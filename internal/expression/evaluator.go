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

// Package expression provides sandboxed expression evaluation for condition,
// switch, filter, and code steps. Expressions see only the bindings handed to
// them; there is no host I/O, filesystem, environment, or network access.
package expression

import (
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/flowline/flowline/pkg/errors"
)

// DefaultTimeout bounds a single evaluation when the caller does not
// configure one.
const DefaultTimeout = 1 * time.Second

// Evaluator compiles and runs sandboxed expressions with a compiled-program
// cache. Safe for concurrent use.
type Evaluator struct {
	mu      sync.RWMutex
	cache   map[string]*vm.Program
	timeout time.Duration
}

// New creates an evaluator with the given wall-clock budget per call.
// A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{
		cache:   make(map[string]*vm.Program),
		timeout: timeout,
	}
}

// Bool evaluates a boolean expression against env. A non-boolean result is a
// compile error surfaced as SANDBOX_ERROR.
func (e *Evaluator) Bool(expression string, env map[string]any) (bool, error) {
	program, err := e.compile("bool:"+expression, expression, env, true)
	if err != nil {
		return false, err
	}
	result, err := e.run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, errors.New(errors.CodeSandboxError,
			"expression %q did not evaluate to a boolean", expression)
	}
	return b, nil
}

// Value evaluates an expression and returns its result.
func (e *Evaluator) Value(expression string, env map[string]any) (any, error) {
	program, err := e.compile("any:"+expression, expression, env, false)
	if err != nil {
		return nil, err
	}
	return e.run(program, env)
}

// Predicate evaluates a filter predicate over one element. The expression
// sees the element as item, its position as index, and the whole slice as
// array, alongside the caller's bindings.
func (e *Evaluator) Predicate(expression string, item any, index int, array []any, env map[string]any) (bool, error) {
	merged := make(map[string]any, len(env)+3)
	for k, v := range env {
		merged[k] = v
	}
	merged["item"] = item
	merged["index"] = index
	merged["array"] = array
	return e.Bool(expression, merged)
}

// compile returns a cached program or compiles and caches one.
func (e *Evaluator) compile(key, expression string, env map[string]any, asBool bool) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	opts := []expr.Option{
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	}
	if asBool {
		opts = append(opts, expr.AsBool())
	}

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSandboxError, err,
			"failed to compile expression %q", expression)
	}

	e.mu.Lock()
	e.cache[key] = program
	e.mu.Unlock()
	return program, nil
}

// run executes a compiled program under the evaluator's wall-clock budget.
func (e *Evaluator) run(program *vm.Program, env map[string]any) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := expr.Run(program, env)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, errors.Wrap(errors.CodeSandboxError, out.err,
				"expression evaluation failed")
		}
		return out.value, nil
	case <-timer.C:
		return nil, errors.New(errors.CodeSandboxTimeout,
			"expression evaluation exceeded %s", e.timeout)
	}
}

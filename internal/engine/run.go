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
	"log/slog"
	"sort"

	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/template"
	"github.com/flowline/flowline/internal/trigger"
)

// currentItemKey is the reserved outputs key shadowed by loop scopes.
const currentItemKey = "currentItem"

// runState is the per-run owned state: the loaded graph, the execution
// record, and the root scope. Nothing outside the run's driver task touches
// it.
type runState struct {
	engine      *Engine
	workflow    *store.Workflow
	execution   *store.Execution
	triggerType trigger.Type
	logger      *slog.Logger

	steps     map[string]*store.Step
	adjacency map[string][]*store.Edge // outgoing edges by source id
	incoming  map[string][]*store.Edge // incoming edges by target id
	preds     map[string][]string      // predecessor step ids by target id

	rootScope *scope
}

func newRunState(e *Engine, workflow *store.Workflow, steps []*store.Step, edges []*store.Edge) *runState {
	rs := &runState{
		engine:    e,
		workflow:  workflow,
		logger:    e.logger,
		steps:     make(map[string]*store.Step, len(steps)),
		adjacency: make(map[string][]*store.Edge),
		incoming:  make(map[string][]*store.Edge),
		preds:     make(map[string][]string),
	}
	for _, st := range steps {
		rs.steps[st.ID] = st
	}
	for _, edge := range edges {
		rs.adjacency[edge.SourceID] = append(rs.adjacency[edge.SourceID], edge)
		rs.incoming[edge.TargetID] = append(rs.incoming[edge.TargetID], edge)
		rs.preds[edge.TargetID] = append(rs.preds[edge.TargetID], edge.SourceID)
	}
	rs.rootScope = &scope{
		run:      rs,
		outputs:  make(map[string]any),
		visited:  make(map[string]struct{}),
		pruned:   make(map[string]struct{}),
		deferred: make(map[string]struct{}),
	}
	return rs
}

// findTrigger returns the first step of the given trigger kind in stable
// order, or nil.
func (rs *runState) findTrigger(kind store.StepKind) *store.Step {
	var ids []string
	for id, st := range rs.steps {
		if st.Kind == kind {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	rs.sortByOrder(ids)
	return rs.steps[ids[0]]
}

// startSet returns the steps with no incoming edge, in stable order. A graph
// where every step has an incoming edge (a pure cycle) falls back to the
// first step in stable order, so the run starts and trips cycle detection
// instead of silently doing nothing.
func (rs *runState) startSet() []string {
	var ids []string
	for id := range rs.steps {
		if len(rs.preds[id]) == 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 && len(rs.steps) > 0 {
		all := make([]string, 0, len(rs.steps))
		for id := range rs.steps {
			all = append(all, id)
		}
		rs.sortByOrder(all)
		return all[:1]
	}
	rs.sortByOrder(ids)
	return ids
}

// successors returns the targets of the given edges in stable order.
func (rs *runState) successors(edges []*store.Edge) []string {
	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.TargetID)
	}
	rs.sortByOrder(ids)
	return ids
}

// sortByOrder sorts step ids by Step.Order ascending, then id ascending.
// This is the determinism guarantee for ready siblings.
func (rs *runState) sortByOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := rs.steps[ids[i]], rs.steps[ids[j]]
		ao, bo := 0, 0
		if a != nil {
			ao = a.Order
		}
		if b != nil {
			bo = b.Order
		}
		if ao != bo {
			return ao < bo
		}
		return ids[i] < ids[j]
	})
}

// scope is one traversal frame over the outputs map. The root scope owns the
// run's outputs; loop iterations get an overlay with a copied map, their own
// visited set, and an inherited call path, so iteration writes cannot leak
// upward.
type scope struct {
	run     *runState
	outputs map[string]any
	visited map[string]struct{}
	path    []string

	// pruned holds edge ids dropped by branch decisions in this scope.
	// Fan-in readiness ignores predecessors reachable only through them.
	pruned map[string]struct{}

	// deferred holds fan-in steps visited before their last live
	// predecessor committed. They are re-checked whenever a step commits
	// or prunes.
	deferred map[string]struct{}
}

// childScope creates a loop-iteration overlay with currentItem shadowed.
func (sc *scope) childScope(item any) *scope {
	outputs := make(map[string]any, len(sc.outputs)+1)
	for k, v := range sc.outputs {
		outputs[k] = v
	}
	outputs[currentItemKey] = item

	path := make([]string, len(sc.path))
	copy(path, sc.path)

	pruned := make(map[string]struct{}, len(sc.pruned))
	for id := range sc.pruned {
		pruned[id] = struct{}{}
	}

	return &scope{
		run:      sc.run,
		outputs:  outputs,
		visited:  make(map[string]struct{}),
		path:     path,
		pruned:   pruned,
		deferred: make(map[string]struct{}),
	}
}

// markPruned drops the given edges from this run scope.
func (sc *scope) markPruned(edges []*store.Edge) {
	for _, edge := range edges {
		sc.pruned[edge.ID] = struct{}{}
	}
}

// snapshot returns a shallow copy of the scope's outputs map.
func (sc *scope) snapshot() map[string]any {
	out := make(map[string]any, len(sc.outputs))
	for k, v := range sc.outputs {
		out[k] = v
	}
	return out
}

// inputsFor builds the handler inputs view: _all, one entry per direct
// predecessor with a committed output, and currentItem inside loop bodies.
func (sc *scope) inputsFor(stepID string) map[string]any {
	view := map[string]any{
		template.AllKey: sc.snapshot(),
	}
	for _, pred := range sc.run.preds[stepID] {
		if value, ok := sc.outputs[pred]; ok {
			view[pred] = value
		}
	}
	if item, ok := sc.outputs[currentItemKey]; ok {
		view[currentItemKey] = item
	}
	return view
}

// sandboxEnv builds the expression bindings: inputs, context (with outputs),
// and currentItem as a top-level convenience inside loop bodies.
func (sc *scope) sandboxEnv(stepID string) map[string]any {
	env := map[string]any{
		"inputs":  sc.inputsFor(stepID),
		"context": map[string]any{"outputs": sc.snapshot()},
	}
	if item, ok := sc.outputs[currentItemKey]; ok {
		env[currentItemKey] = item
	}
	return env
}

// lookup resolves a path expression against the outputs map first, then the
// step's inputs view. Loop inputs are usually "stepId.field" paths into
// outputs; predecessor-relative keys fall back to the inputs view.
func (sc *scope) lookup(path, stepID string) (any, bool) {
	if value, ok := template.Lookup(path, sc.outputs); ok {
		return value, true
	}
	return template.Lookup(path, sc.inputsFor(stepID))
}

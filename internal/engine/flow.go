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

// runFrom traverses the graph depth-first from the given step set. Siblings
// run in Order-then-id order; each step's output is committed before its
// successors are dispatched.
func (sc *scope) runFrom(ctx context.Context, stepIDs []string) error {
	for _, id := range stepIDs {
		if err := sc.visit(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// visit dispatches one step and recurses into the successors it selects.
// The step stays on the call path while its subtree resolves, so a cycle
// back into it fails the run with the offending path. The path check must
// come before the visited check: a step re-entered while still on the path
// is a cycle, not an already-settled convergence.
func (sc *scope) visit(ctx context.Context, id string) error {
	for _, onPath := range sc.path {
		if onPath == id {
			return errors.New(errors.CodeCycleDetected, "cycle detected: %s",
				strings.Join(append(sc.path, id), " -> "))
		}
	}
	if _, done := sc.visited[id]; done {
		return nil
	}
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	step, ok := sc.run.steps[id]
	if !ok {
		return errors.New(errors.CodeStepNotFound, "step %s not found", id)
	}
	if !sc.ready(step) {
		// Parked until another predecessor path visits again or a branch
		// decision prunes the predecessor it is waiting on.
		sc.deferred[id] = struct{}{}
		return nil
	}
	delete(sc.deferred, id)

	sc.visited[id] = struct{}{}
	sc.path = append(sc.path, id)
	defer func() { sc.path = sc.path[:len(sc.path)-1] }()

	result, err := sc.dispatch(ctx, step)
	if err != nil {
		return err
	}
	sc.outputs[id] = result.value

	next := result.next
	if !result.exclusive {
		next = sc.run.successors(sc.run.adjacency[id])
	}
	if err := sc.runFrom(ctx, next); err != nil {
		return err
	}
	// This step may have committed the last live predecessor output a
	// parked fan-in was waiting on, or pruned the branch it was watching.
	return sc.flushDeferred(ctx)
}

// flushDeferred re-visits parked fan-in steps that became ready, repeating
// until a pass makes no progress. Each flushed visit can itself unpark more.
func (sc *scope) flushDeferred(ctx context.Context) error {
	for {
		var ready []string
		for id := range sc.deferred {
			if step, ok := sc.run.steps[id]; ok && sc.ready(step) {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			return nil
		}
		sc.run.sortByOrder(ready)
		for _, id := range ready {
			delete(sc.deferred, id)
			if err := sc.visit(ctx, id); err != nil {
				return err
			}
		}
	}
}

// ready gates fan-in. A step with multiple incoming edges waits until every
// predecessor still on a taken path has committed an output; predecessors
// behind pruned branches are ignored. A merge step with config eager set
// replicates run-on-first-predecessor semantics instead.
func (sc *scope) ready(step *store.Step) bool {
	incoming := sc.run.incoming[step.ID]
	if len(incoming) <= 1 {
		return true
	}
	if step.Kind == store.KindMerge {
		if eager, _ := step.Config["eager"].(bool); eager {
			return true
		}
	}
	for _, edge := range incoming {
		if _, ok := sc.outputs[edge.SourceID]; ok {
			continue
		}
		if sc.edgeTaken(edge) {
			return false
		}
	}
	return true
}

// edgeTaken reports whether the edge can still deliver an output in this
// scope: neither the edge itself nor everything upstream of its source has
// been pruned.
func (sc *scope) edgeTaken(edge *store.Edge) bool {
	if _, pruned := sc.pruned[edge.ID]; pruned {
		return false
	}
	return !sc.sourcePruned(edge.SourceID, make(map[string]bool))
}

// sourcePruned reports whether every path from a start step to the given
// step runs through a pruned edge. Cycles count as pruned so readiness
// cannot deadlock on them.
func (sc *scope) sourcePruned(id string, seen map[string]bool) bool {
	if seen[id] {
		return true
	}
	seen[id] = true

	if _, ok := sc.outputs[id]; ok {
		return false
	}
	incoming := sc.run.incoming[id]
	if len(incoming) == 0 {
		return false
	}
	for _, edge := range incoming {
		if _, pruned := sc.pruned[edge.ID]; pruned {
			continue
		}
		if !sc.sourcePruned(edge.SourceID, seen) {
			return false
		}
	}
	return true
}

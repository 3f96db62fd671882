// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"
)

// elementManager owns the flat set of elements in one scope (the top level of
// a pipeline or the inside of a region) and the layering derived from it.
// Elements themselves are owned by the pipeline's repository; the manager
// never releases them.
type elementManager struct {
	label    string
	elements []*element
	layers   [][]*element
	expected int
}

func newElementManager(label string) *elementManager {
	return &elementManager{label: label}
}

func (m *elementManager) add(e *element) {
	e.scoped = true
	m.elements = append(m.elements, e)
}

func (m *elementManager) members() []Element {
	out := make([]Element, len(m.elements))
	for i, e := range m.elements {
		out[i] = e.self
	}
	return out
}

// size returns the number of leaf elements a complete run of this scope
// executes.
func (m *elementManager) size() int {
	n := 0
	for _, e := range m.elements {
		n += e.self.size()
	}
	return n
}

// init computes the layering and then prepares every element in scope,
// recursing into clusters and regions. If any element fails to prepare, the
// elements already prepared are deinitialized again.
func (m *elementManager) init(ctx context.Context) error {
	layers, err := m.buildLayers()
	if err != nil {
		return err
	}
	for i, e := range m.elements {
		if err := e.self.initialize(ctx); err != nil {
			_ = deinitializeElements(ctx, m.elements[:i])
			return err
		}
	}
	m.layers = layers
	m.expected = m.size()
	return nil
}

// buildLayers levels the scope's graph Kahn-style. Each pass takes every
// unplaced element whose unmet dependency count has reached zero, places it
// in the current layer and releases the elements waiting on it. Elements'
// own leftDepend counters are copied, not consumed, so the layering can be
// rebuilt.
func (m *elementManager) buildLayers() ([][]*element, error) {
	inScope := make(map[*element]struct{}, len(m.elements))
	for _, e := range m.elements {
		inScope[e] = struct{}{}
	}

	leftDepend := make(map[*element]int, len(m.elements))
	var frontier deque.Deque[*element]
	for _, e := range m.elements {
		leftDepend[e] = e.leftDepend
		if e.leftDepend == 0 {
			frontier.PushBack(e)
		}
	}

	var layers [][]*element
	placed := 0
	for placed < len(m.elements) {
		if frontier.Len() == 0 {
			return nil, m.cycleError(leftDepend)
		}

		// Order each layer by creation sequence so that the layering of a
		// given graph is always the same.
		var batch heap.Heap[layerEntry, heap.Min]
		for frontier.Len() > 0 {
			heap.PushOrderable(&batch, layerEntry{frontier.PopFront()})
		}
		var layer []*element
		for {
			entry, ok := heap.PopOrderable(&batch)
			if !ok {
				break
			}
			layer = append(layer, entry.e)
		}

		for _, e := range layer {
			delete(leftDepend, e)
			for next := range e.runBefore {
				if _, ok := inScope[next]; !ok {
					continue
				}
				leftDepend[next]--
				if leftDepend[next] == 0 {
					frontier.PushBack(next)
				}
			}
		}
		layers = append(layers, layer)
		placed += len(layer)
	}
	return layers, nil
}

func (m *elementManager) cycleError(unplaced map[*element]int) error {
	set := make(map[*element]struct{}, len(unplaced))
	for e := range unplaced {
		set[e] = struct{}{}
	}
	return &CycleError{Unplaced: sortedElements(set)}
}

// afterRunCheck verifies that a run executed exactly as many elements as the
// scope contains. A mismatch means the scheduler itself misbehaved.
func (m *elementManager) afterRunCheck(executed int) error {
	if executed != m.expected {
		return runSizeMismatch(m.label, m.expected, executed)
	}
	return nil
}

// deinit releases per-run state and deinitializes every element in scope.
func (m *elementManager) deinit(ctx context.Context) error {
	m.layers = nil
	m.expected = 0
	return deinitializeElements(ctx, m.elements)
}

func (m *elementManager) snapshot() [][]Element {
	if m.layers == nil {
		return nil
	}
	out := make([][]Element, len(m.layers))
	for i, layer := range m.layers {
		out[i] = make([]Element, len(layer))
		for j, e := range layer {
			out[i][j] = e.self
		}
	}
	return out
}

type layerEntry struct {
	e *element
}

func (a *layerEntry) Cmp(b *layerEntry) int {
	return cmp.Compare(a.e.seq, b.e.seq)
}

func sortBySeq(elements []*element) {
	slices.SortFunc(elements, func(a, b *element) int {
		return cmp.Compare(a.seq, b.seq)
	})
}

// deinitializeElements deinitializes elements in reverse order, continuing
// past failures.
func deinitializeElements(ctx context.Context, elements []*element) error {
	var errs []error
	for i := len(elements) - 1; i >= 0; i-- {
		if err := elements[i].self.deinitialize(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deinitializeAll(ctx context.Context, elements []Element) error {
	bases := make([]*element, len(elements))
	for i, e := range elements {
		bases[i] = e.base()
	}
	return deinitializeElements(ctx, bases)
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"

	"github.com/google/uuid"
)

// An Element is a schedulable unit of a [Pipeline]'s dependency graph: a
// [Node], a [Cluster] or a [Region]. Elements are created only through the
// factory methods of a Pipeline, which owns them for its whole lifetime.
//
// Dependency edges between elements are relations, not ownership. An element
// becomes runnable once every element it depends on has completed.
type Element interface {
	// Name returns the user-assigned name. Names need not be unique.
	Name() string

	// ID returns an identifier that is unique to this element.
	ID() uuid.UUID

	// Loop returns how many times the element's run step repeats each time
	// the element executes.
	Loop() int

	// Dependencies returns the elements this element waits on, in creation
	// order.
	Dependencies() []Element

	// Dependents returns the elements that wait on this element, in creation
	// order.
	Dependents() []Element

	base() *element
	size() int
	execute(ctx context.Context, x *executor) (int, error)
	initialize(ctx context.Context) error
	deinitialize(ctx context.Context) error
	release() error
}

// element holds the identity and dependency bookkeeping shared by every
// Element variant.
type element struct {
	self  Element
	owner *Pipeline
	id    uuid.UUID
	seq   uint64
	name  string
	loop  int

	// scoped is set once the element has been placed in a scope: the top
	// level of a pipeline, a Region, or a Cluster.
	scoped bool

	dependence map[*element]struct{}
	runBefore  map[*element]struct{}
	leftDepend int
}

func (e *element) Name() string {
	return e.name
}

func (e *element) ID() uuid.UUID {
	return e.id
}

func (e *element) Loop() int {
	return e.loop
}

func (e *element) Dependencies() []Element {
	return sortedElements(e.dependence)
}

func (e *element) Dependents() []Element {
	return sortedElements(e.runBefore)
}

// dependOn records that e waits on dep. Self edges are dropped.
func (e *element) dependOn(dep *element) {
	if dep == e {
		return
	}
	dep.runBefore[e] = struct{}{}
	e.dependence[dep] = struct{}{}
}

func isNil(e Element) bool {
	return e == nil || e.base() == nil
}

func anyNil(elements []Element) bool {
	for _, e := range elements {
		if isNil(e) {
			return true
		}
	}
	return false
}

// sortedElements returns the elements of set ordered by creation sequence so
// that callers see a stable order.
func sortedElements(set map[*element]struct{}) []Element {
	bySeq := make([]*element, 0, len(set))
	for e := range set {
		bySeq = append(bySeq, e)
	}
	sortBySeq(bySeq)
	out := make([]Element, len(bySeq))
	for i, e := range bySeq {
		out[i] = e.self
	}
	return out
}

// loopCount runs step once per loop iteration, stopping at the first error.
func loopCount(loop int, step func() error) error {
	for range loop {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"

	"go.uber.org/zap"
)

// A Region is an [Element] that encloses a sub-graph of its own. From the
// outside it is a single unit of the enclosing dependency graph. When it
// runs, it computes nothing new: the layering of its members was fixed by
// [Pipeline.Init], and the region executes those layers batch by batch on the
// pipeline's [WorkerPool], or on one given with [Region.SetWorkerPool],
// exactly as the pipeline does for the top level. It completes only once its
// whole sub-graph has completed. Regions may nest.
//
// Dependencies among a region's members are declared with
// [Pipeline.AddDependElements] like any others, but must stay within the
// region: a member cannot wait on an element outside it. Declare such
// dependencies on the region itself. Create Regions with
// [Pipeline.CreateRegion].
type Region struct {
	element
	manager *elementManager
	pool    WorkerPool
}

// Elements returns the region's members in the order they were given.
func (r *Region) Elements() []Element {
	return r.manager.members()
}

// WorkerPool returns the pool the region executes its sub-graph on.
func (r *Region) WorkerPool() WorkerPool {
	return r.pool
}

// SetWorkerPool makes the region execute its sub-graph on pool instead of
// the pipeline's. Like every structural change it is rejected once the
// pipeline has been initialized. The region does not close pool.
func (r *Region) SetWorkerPool(pool WorkerPool) error {
	if isNil(r) || pool == nil {
		return ErrNullArgument
	}
	if err := r.owner.checkMutable(); err != nil {
		return err
	}
	r.pool = pool
	return nil
}

// Layers returns the batches the region executes, in order. It returns nil
// until the owning pipeline has been initialized.
func (r *Region) Layers() [][]Element {
	return r.manager.snapshot()
}

func (r *Region) base() *element {
	if r == nil {
		return nil
	}
	return &r.element
}

func (r *Region) size() int {
	return r.manager.size()
}

func (r *Region) execute(ctx context.Context, x *executor) (int, error) {
	if r.pool == nil {
		return 0, ErrNoWorkerPool
	}
	if r.loop == 0 {
		return r.size(), nil
	}
	inner := x.withPool(r.pool)
	executed := 0
	err := loopCount(r.loop, func() error {
		var err error
		executed, err = inner.runLayers(ctx, r.manager)
		if err != nil {
			return err
		}
		return r.manager.afterRunCheck(executed)
	})
	if err != nil {
		x.logger.Debug("region failed",
			zap.String("region", r.name),
			zap.Stringer("id", r.id),
			zap.Error(err))
	}
	return executed, err
}

func (r *Region) initialize(ctx context.Context) error {
	return r.manager.init(ctx)
}

func (r *Region) deinitialize(ctx context.Context) error {
	return r.manager.deinit(ctx)
}

func (r *Region) release() error {
	r.pool = nil
	return nil
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/petenewcomb/pipegraph-go/internal/state"
	"golang.org/x/sync/semaphore"
)

// A Unit is the runnable submitted to a [WorkerPool]: one element's
// execution. It reports its outcome as an error rather than panicking across
// the pool boundary.
type Unit = func(ctx context.Context) error

// A Handle is returned by [WorkerPool.Submit] and yields the outcome of the
// submitted unit.
type Handle interface {
	// Wait blocks until the unit has completed and returns its error. Wait
	// always drains: cancellation of ctx does not cut it short.
	Wait(ctx context.Context) error
}

// WorkerPool is the execution backend of a [Pipeline]. Submit must be safe
// to call from multiple goroutines and must not run the unit on the calling
// goroutine, since the pipeline submits a whole batch before waiting on any
// of it.
type WorkerPool interface {
	Submit(ctx context.Context, unit Unit) Handle
}

// GoroutinePool is the default [WorkerPool]. Each submitted unit gets its
// own goroutine, and a weighted semaphore bounds how many units execute at
// once.
//
// A unit that itself waits on handles of the same pool (as a [Region] does
// for its inner batches) gives up its execution slot for as long as it is
// blocked in [Handle.Wait], so nested regions cannot starve the pool even
// with a limit of one.
type GoroutinePool struct {
	limit    int
	sem      *semaphore.Weighted
	inFlight state.InFlightCounter
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   atomic.Bool
}

// NewWorkerPool creates a [GoroutinePool] that executes at most limit units
// at once. A limit of zero or less means no limit.
func NewWorkerPool(limit int) *GoroutinePool {
	p := &GoroutinePool{limit: limit}
	if limit > 0 {
		p.sem = semaphore.NewWeighted(int64(limit))
	}
	return p
}

// Limit returns the concurrency limit the pool was created with.
func (p *GoroutinePool) Limit() int {
	return p.limit
}

// InFlight returns the number of units currently executing.
func (p *GoroutinePool) InFlight() int {
	return p.inFlight.Load()
}

// Submit launches unit on a new goroutine. The goroutine waits for an
// execution slot before running the unit. The context passed to the unit is
// derived from ctx. Submissions to a closed pool complete immediately with
// [ErrPoolClosed].
func (p *GoroutinePool) Submit(ctx context.Context, unit Unit) Handle {
	if unit == nil {
		panic("unit must be non-nil")
	}

	h := &poolHandle{done: make(chan struct{})}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		h.err = ErrPoolClosed
		close(h.done)
		return h
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w := &worker{pool: p}
		if p.sem != nil {
			// Acquire cannot fail with a context that is never canceled.
			_ = p.sem.Acquire(context.WithoutCancel(ctx), 1)
		}
		p.inFlight.Increment()
		h.err = invoke(p.makeWorkerContext(ctx, w), unit)
		p.inFlight.Decrement()
		if p.sem != nil {
			p.sem.Release(1)
		}
		close(h.done)
	}()
	return h
}

// Close rejects further submissions and waits for every submitted unit to
// complete. Calling Close more than once has no additional effect.
func (p *GoroutinePool) Close() error {
	p.mu.Lock()
	p.closed.Store(true)
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

func invoke(ctx context.Context, unit Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = taskPanic(r)
		}
	}()
	return unit(ctx)
}

type poolHandle struct {
	done chan struct{}
	err  error
}

func (h *poolHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	default:
	}
	for _, w := range workersOf(ctx) {
		w.yield()
		defer w.reclaim()
	}
	<-h.done
	return h.err
}

// worker represents the execution slot held by one running unit.
type worker struct {
	pool    *GoroutinePool
	mu      sync.Mutex
	waiters int
}

// yield releases the worker's slot while at least one wait is in progress.
func (w *worker) yield() {
	if w.pool.sem == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waiters++
	if w.waiters == 1 {
		w.pool.inFlight.Decrement()
		w.pool.sem.Release(1)
	}
}

// reclaim takes the slot back once the last concurrent wait has finished.
func (w *worker) reclaim() {
	if w.pool.sem == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waiters--
	if w.waiters == 0 {
		_ = w.pool.sem.Acquire(context.Background(), 1)
		w.pool.inFlight.Increment()
	}
}

type workerContextMarkerType struct{}

var workerContextMarkerKey any = workerContextMarkerType{}

// makeWorkerContext marks ctx as belonging to a unit running in pool p. A
// context may belong to units of several pools when pools are nested, so the
// marker accumulates rather than replaces.
func (p *GoroutinePool) makeWorkerContext(ctx context.Context, w *worker) context.Context {
	var newValue any
	switch oldValue := ctx.Value(workerContextMarkerKey).(type) {
	case nil:
		newValue = w
	case *worker:
		if oldValue.pool == p {
			newValue = w
		} else {
			newValue = map[*GoroutinePool]*worker{
				oldValue.pool: oldValue,
				p:             w,
			}
		}
	case map[*GoroutinePool]*worker:
		m := make(map[*GoroutinePool]*worker, len(oldValue)+1)
		maps.Copy(m, oldValue)
		m[p] = w
		newValue = m
	default:
		panic("unexpected worker context marker value type")
	}
	return context.WithValue(ctx, workerContextMarkerKey, newValue)
}

// workersOf returns the execution slots held by the units ctx belongs to.
func workersOf(ctx context.Context) []*worker {
	switch v := ctx.Value(workerContextMarkerKey).(type) {
	case nil:
		return nil
	case *worker:
		return []*worker{v}
	case map[*GoroutinePool]*worker:
		out := make([]*worker, 0, len(v))
		for _, w := range v {
			out = append(out, w)
		}
		return out
	default:
		panic("unexpected worker context marker value type")
	}
}

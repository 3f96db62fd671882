// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petenewcomb/pipegraph-go/internal/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/petenewcomb/pipegraph-go"

// A Pipeline owns a dependency graph of [Element]s and executes it on a
// [WorkerPool].
//
// The graph is built first: elements are created with [Pipeline.CreateNode],
// [Pipeline.CreateCluster] and [Pipeline.CreateRegion], connected with
// [Pipeline.AddDependElements], and placed at the top level with
// [Pipeline.Register]. [Pipeline.Init] then freezes the structure and
// computes its layering, after which [Pipeline.Run] may be called any number
// of times. [Pipeline.Deinit] ends the pipeline's useful life and
// [Pipeline.Close] releases everything it ever created.
//
// Building the graph is single-threaded by contract. A Pipeline rejects
// overlapping runs rather than serializing them.
type Pipeline struct {
	name      string
	lifecycle state.Lifecycle
	pool      WorkerPool
	ownedPool *GoroutinePool
	manager   *elementManager
	x         *executor
	logger    *zap.Logger
	tracer    trace.Tracer

	// repository holds every element ever created through this pipeline,
	// whether or not it was successfully wired into the graph. It is the
	// only place elements are released from.
	repository  []Element
	seq         uint64
	releaseOnce sync.Once
}

// New creates an empty pipeline. Unless [WithWorkerPool] is given, the
// pipeline creates and owns a [GoroutinePool] limited by [WithWorkerLimit].
func New(opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		name:    o.name,
		manager: newElementManager(o.name),
	}
	if o.poolSet {
		p.pool = o.pool
	} else {
		p.ownedPool = NewWorkerPool(o.workerLimit)
		p.pool = p.ownedPool
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p.logger = logger.With(zap.String("pipeline", o.name))

	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	p.tracer = tp.Tracer(tracerName)

	p.x = &executor{pool: p.pool, logger: p.logger, tracer: p.tracer}
	return p
}

// Name returns the name given with [WithName].
func (p *Pipeline) Name() string {
	return p.name
}

// WorkerPool returns the pool the pipeline executes on.
func (p *Pipeline) WorkerPool() WorkerPool {
	return p.pool
}

// Elements returns the top-level elements in registration order.
func (p *Pipeline) Elements() []Element {
	return p.manager.members()
}

// Layers returns the top-level batches in execution order. It returns nil
// until the pipeline has been initialized.
func (p *Pipeline) Layers() [][]Element {
	return p.manager.snapshot()
}

// CreateNode creates a [Node] that runs task, waiting on every element of
// dependSet. The node is not part of the graph until it is registered with
// [Pipeline.Register] or made a member of a cluster or region.
func (p *Pipeline) CreateNode(task Task, dependSet []Element, name string, loop int) (*Node, error) {
	if err := p.checkMutable(); err != nil {
		return nil, err
	}
	if task == nil || anyNil(dependSet) {
		return nil, ErrNullArgument
	}
	if f, ok := task.(TaskFunc); ok && f == nil {
		return nil, ErrNullArgument
	}
	if loop < 0 {
		return nil, ErrInvalidLoop
	}

	n := &Node{task: task}
	p.adopt(&n.element, n, name, loop)
	if err := p.AddDependElements(n, dependSet...); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateCluster creates a [Cluster] that runs elements in the given order,
// waiting on every element of dependSet.
//
// If any argument is invalid, CreateCluster returns an error and no element
// is affected. An error while wiring dependencies may leave the allocated
// cluster behind in the pipeline, unreachable from the graph; it is released
// by [Pipeline.Close] like every other element.
func (p *Pipeline) CreateCluster(elements []Element, dependSet []Element, name string, loop int) (*Cluster, error) {
	if err := p.checkMutable(); err != nil {
		return nil, err
	}
	if anyNil(elements) || anyNil(dependSet) {
		return nil, ErrNullArgument
	}
	if loop < 0 {
		return nil, ErrInvalidLoop
	}
	if err := p.checkMembers(elements); err != nil {
		return nil, err
	}

	c := &Cluster{}
	p.adopt(&c.element, c, name, loop)
	if err := p.AddDependElements(c, dependSet...); err != nil {
		return nil, err
	}
	for _, e := range elements {
		e.base().scoped = true
		c.members = append(c.members, e)
	}
	return c, nil
}

// CreateRegion creates a [Region] whose sub-graph consists of elements,
// waiting on every element of dependSet. The region executes on the
// pipeline's worker pool. Error behavior is as for [Pipeline.CreateCluster].
func (p *Pipeline) CreateRegion(elements []Element, dependSet []Element, name string, loop int) (*Region, error) {
	if p.pool == nil {
		return nil, ErrNoWorkerPool
	}
	if err := p.checkMutable(); err != nil {
		return nil, err
	}
	if anyNil(elements) || anyNil(dependSet) {
		return nil, ErrNullArgument
	}
	if loop < 0 {
		return nil, ErrInvalidLoop
	}
	if err := p.checkMembers(elements); err != nil {
		return nil, err
	}

	r := &Region{manager: newElementManager(name)}
	p.adopt(&r.element, r, name, loop)
	if err := p.AddDependElements(r, dependSet...); err != nil {
		return nil, err
	}
	for _, e := range elements {
		r.manager.add(e.base())
	}
	r.pool = p.pool
	return r, nil
}

// Register places elements at the top level of the graph. Each element may
// be placed in only one scope.
func (p *Pipeline) Register(elements ...Element) error {
	if err := p.checkMutable(); err != nil {
		return err
	}
	if anyNil(elements) {
		return ErrNullArgument
	}
	if err := p.checkMembers(elements); err != nil {
		return err
	}
	for _, e := range elements {
		p.manager.add(e.base())
	}
	return nil
}

// AddDependElements makes element wait on every element of dependSet. A
// dependency of an element on itself is ignored.
//
// The call is all or nothing: if element or any member of dependSet is nil
// or belongs to another pipeline, or if the pipeline has already been
// initialized, an error is returned and nothing is changed.
func (p *Pipeline) AddDependElements(element Element, dependSet ...Element) error {
	if err := p.checkMutable(); err != nil {
		return err
	}
	if isNil(element) || anyNil(dependSet) {
		return ErrNullArgument
	}
	if err := p.checkForeign(element); err != nil {
		return err
	}
	if err := p.checkForeign(dependSet...); err != nil {
		return err
	}

	e := element.base()
	for _, dep := range dependSet {
		e.dependOn(dep.base())
	}
	e.leftDepend = len(e.dependence)
	return nil
}

// Init freezes the graph, computes the layering of the top level and of
// every region, and calls [Initializer.Init] on every task that implements
// it. It fails with an error matching [ErrCycleDetected] if some element can
// never become runnable. Init on an initialized pipeline does nothing.
func (p *Pipeline) Init(ctx context.Context) error {
	switch p.lifecycle.Load() {
	case state.StageInitialized, state.StageRunning:
		return nil
	case state.StageDeinitialized:
		return ErrDeinitialized
	}
	if p.pool == nil {
		return ErrNoWorkerPool
	}

	if err := p.manager.init(ctx); err != nil {
		p.logger.Error("init failed", zap.Error(err))
		return err
	}
	if !p.lifecycle.Transition(state.StageUninitialized, state.StageInitialized) {
		_ = p.manager.deinit(ctx)
		return fmt.Errorf("init raced with %v", p.lifecycle.Load())
	}
	p.logger.Info("pipeline initialized",
		zap.Int("elements", p.manager.expected),
		zap.Int("batches", len(p.manager.layers)))
	return nil
}

// Run executes the graph once, batch by batch. All elements of a batch are
// submitted to the worker pool together and may run concurrently; the next
// batch starts only after every element of the current one has completed.
//
// If an element fails, the rest of its batch is still awaited, no further
// batch starts, and the first failure is returned as an [*ElementError]. If
// ctx is canceled, Run returns ctx.Err() before starting the next batch;
// work already submitted is awaited, not interrupted.
//
// Run requires a successful [Pipeline.Init]. Calls may not overlap.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.lifecycle.Transition(state.StageInitialized, state.StageRunning) {
		switch p.lifecycle.Load() {
		case state.StageRunning:
			return ErrRunInProgress
		case state.StageDeinitialized:
			return ErrDeinitialized
		default:
			return ErrNotInitialized
		}
	}
	defer p.lifecycle.Transition(state.StageRunning, state.StageInitialized)

	ctx, span := p.tracer.Start(ctx, "pipegraph.run", trace.WithAttributes(
		attribute.String("pipegraph.pipeline", p.name),
		attribute.Int("pipegraph.batches", len(p.manager.layers)),
	))
	defer span.End()

	start := time.Now()
	executed, err := p.x.runLayers(ctx, p.manager)
	if err == nil {
		err = p.manager.afterRunCheck(executed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("run failed",
			zap.Int("executed", executed),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}
	p.logger.Info("run completed",
		zap.Int("executed", executed),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Deinit calls [Deinitializer.Deinit] on every task that implements it and
// moves the pipeline to its terminal state. It fails with
// [ErrRunInProgress] during a run. Deinit on a pipeline that was never
// initialized, or was already deinitialized, only ends its lifecycle.
func (p *Pipeline) Deinit(ctx context.Context) error {
	switch p.lifecycle.Finish() {
	case state.StageRunning:
		return ErrRunInProgress
	case state.StageInitialized:
		err := p.manager.deinit(ctx)
		if err != nil {
			p.logger.Error("deinit failed", zap.Error(err))
		} else {
			p.logger.Info("pipeline deinitialized")
		}
		return err
	default:
		return nil
	}
}

// Close deinitializes the pipeline if needed, waits for and closes the
// worker pool if the pipeline created it, and releases every element the
// pipeline ever created, calling Close on each task that implements
// [io.Closer]. Each element is released exactly once however many times
// Close is called.
func (p *Pipeline) Close(ctx context.Context) error {
	err := p.Deinit(ctx)
	if errors.Is(err, ErrRunInProgress) {
		return err
	}
	var releaseErr error
	p.releaseOnce.Do(func() {
		releaseErr = p.release()
	})
	return errors.Join(err, releaseErr)
}

func (p *Pipeline) release() error {
	var errs []error
	if p.ownedPool != nil {
		if err := p.ownedPool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range p.repository {
		if err := e.release(); err != nil {
			errs = append(errs, fmt.Errorf("releasing %q: %w", e.Name(), err))
		}
	}
	p.logger.Debug("elements released", zap.Int("count", len(p.repository)))
	p.repository = nil
	return errors.Join(errs...)
}

// adopt initializes a newly allocated element and records it in the
// repository. It must be called before anything that can fail so that the
// element is never lost.
func (p *Pipeline) adopt(e *element, self Element, name string, loop int) {
	p.seq++
	e.self = self
	e.owner = p
	e.id = uuid.New()
	e.seq = p.seq
	e.name = name
	e.loop = loop
	e.dependence = make(map[*element]struct{})
	e.runBefore = make(map[*element]struct{})
	p.repository = append(p.repository, self)
}

func (p *Pipeline) checkMutable() error {
	if !p.lifecycle.Is(state.StageUninitialized) {
		return ErrStructureFrozen
	}
	return nil
}

func (p *Pipeline) checkForeign(elements ...Element) error {
	for _, e := range elements {
		if e.base().owner != p {
			return fmt.Errorf("%w: %q", ErrForeignElement, e.Name())
		}
	}
	return nil
}

// checkMembers verifies that elements can all be placed in a new scope.
func (p *Pipeline) checkMembers(elements []Element) error {
	if err := p.checkForeign(elements...); err != nil {
		return err
	}
	seen := make(map[*element]struct{}, len(elements))
	for _, e := range elements {
		b := e.base()
		if _, dup := seen[b]; dup || b.scoped {
			return fmt.Errorf("%w: %q", ErrAlreadyOwned, e.Name())
		}
		seen[b] = struct{}{}
	}
	return nil
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"
	"io"
)

// A Task holds the user-defined logic of a [Node]. Run is called once per
// loop iteration each time the node executes, on a goroutine owned by the
// pipeline's [WorkerPool], and must therefore be thread-safe with respect to
// anything it shares with other tasks. Tasks in the same batch may run
// concurrently; a task never runs concurrently with any task it depends on.
//
// A non-nil error fails the node and therefore the batch containing it. If
// Run panics, the panic is recovered at the worker pool boundary and reported
// as an error matching [ErrTaskPanic].
//
// A Task may additionally implement [Initializer], [Deinitializer] and
// [io.Closer]. These are detected by type assertion and called by
// [Pipeline.Init], [Pipeline.Deinit] and [Pipeline.Close] respectively.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts an ordinary function to the [Task] interface.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Initializer is implemented by tasks that need preparation before the first
// run. Init is called once per successful [Pipeline.Init], from the calling
// goroutine.
type Initializer interface {
	Init(ctx context.Context) error
}

// Deinitializer is implemented by tasks that hold per-initialization
// resources. Deinit is called from [Pipeline.Deinit].
type Deinitializer interface {
	Deinit(ctx context.Context) error
}

// WrapTask returns a Task whose Run method calls run in place of inner's,
// while Init, Deinit and Close are forwarded to inner whenever inner
// implements them. It lets decorators such as instrumentation change how a
// task runs without changing its lifecycle.
func WrapTask(inner Task, run TaskFunc) Task {
	if inner == nil {
		panic("task must be non-nil")
	}
	if run == nil {
		panic("run must be non-nil")
	}
	return &wrappedTask{inner: inner, run: run}
}

type wrappedTask struct {
	inner Task
	run   TaskFunc
}

func (t *wrappedTask) Run(ctx context.Context) error {
	return t.run(ctx)
}

func (t *wrappedTask) Init(ctx context.Context) error {
	if i, ok := t.inner.(Initializer); ok {
		return i.Init(ctx)
	}
	return nil
}

func (t *wrappedTask) Deinit(ctx context.Context) error {
	if d, ok := t.inner.(Deinitializer); ok {
		return d.Deinit(ctx)
	}
	return nil
}

func (t *wrappedTask) Close() error {
	if c, ok := t.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

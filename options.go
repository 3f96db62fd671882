// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"runtime"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// An Option configures a [Pipeline] at construction.
type Option func(*options)

type options struct {
	name           string
	pool           WorkerPool
	poolSet        bool
	workerLimit    int
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
}

func defaultOptions() options {
	return options{
		name:        "pipeline",
		workerLimit: runtime.GOMAXPROCS(0),
	}
}

// WithName sets the name used for the pipeline's top-level scope in logs,
// spans and errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithWorkerPool makes the pipeline execute on pool instead of creating its
// own. The pipeline does not close a pool supplied this way.
func WithWorkerPool(pool WorkerPool) Option {
	return func(o *options) {
		o.pool = pool
		o.poolSet = true
	}
}

// WithWorkerLimit sets the concurrency limit of the pool the pipeline
// creates for itself. It has no effect together with [WithWorkerPool]. The
// default is GOMAXPROCS; zero or less means unlimited.
func WithWorkerLimit(limit int) Option {
	return func(o *options) {
		o.workerLimit = limit
	}
}

// WithLogger sets the logger for lifecycle and batch events. The default
// discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracerProvider sets where batch and element spans are created. The
// default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package pgprom exports pipegraph task and worker pool activity as
// Prometheus metrics.
package pgprom

import (
	"context"
	"errors"
	"fmt"
	"time"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"github.com/petenewcomb/pipegraph-go/internal/cerr"
	prom "github.com/prometheus/client_golang/prometheus"
)

const ErrDuplicatePool = cerr.Error("worker pool already registered")

// Options controls collector configuration.
type Options struct {
	// DurationBuckets are the histogram buckets for task durations, in
	// seconds. Empty means prometheus.DefBuckets.
	DurationBuckets []float64
}

// Exporter owns the collectors shared by every task and pool it
// instruments. Exporters created with the same namespace on the same
// registerer share their task collectors.
type Exporter struct {
	namespace    string
	reg          prom.Registerer
	taskDuration *prom.HistogramVec
	taskFailures *prom.CounterVec
}

// NewExporter creates and registers the task collectors on reg. An empty
// namespace means "pipegraph" and a nil reg means prometheus.DefaultRegisterer.
func NewExporter(namespace string, reg prom.Registerer, opts Options) (*Exporter, error) {
	if namespace == "" {
		namespace = "pipegraph"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task run duration in seconds.",
		Buckets:   buckets,
	}, []string{"task"})
	failureVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_failures_total",
		Help:      "Total number of task runs that returned an error.",
	}, []string{"task"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if failureVec, err = registerCollector(reg, failureVec); err != nil {
		return nil, err
	}

	return &Exporter{
		namespace:    namespace,
		reg:          reg,
		taskDuration: durationVec,
		taskFailures: failureVec,
	}, nil
}

// Task wraps task so that each run is observed under the given task label.
func (e *Exporter) Task(name string, task pipegraph.Task) pipegraph.Task {
	duration := e.taskDuration.WithLabelValues(name)
	failures := e.taskFailures.WithLabelValues(name)
	return pipegraph.WrapTask(task, func(ctx context.Context) error {
		start := time.Now()
		err := task.Run(ctx)
		duration.Observe(time.Since(start).Seconds())
		if err != nil {
			failures.Inc()
		}
		return err
	})
}

// RegisterPool exposes the occupancy of pool under the given pool label. A
// name may be registered once per registerer.
func (e *Exporter) RegisterPool(name string, pool PoolStats) error {
	if pool == nil {
		panic("pool must be non-nil")
	}
	err := e.reg.Register(newPoolCollector(e.namespace, name, pool))
	if err == nil {
		return nil
	}
	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		return ErrDuplicatePool.Wrapf("%q", name)
	}
	return err
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}

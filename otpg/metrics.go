// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpg

import (
	"context"
	"time"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MetricsTask adds metrics collection to a task. It records the count,
// duration, and error count of its executions under metricName.
func MetricsTask(metricName string, task pipegraph.Task) pipegraph.Task {
	meter := otel.GetMeterProvider().Meter("otpg")

	taskCounter, _ := meter.Int64Counter(metricName + ".count")
	taskDuration, _ := meter.Float64Histogram(metricName+".duration", metric.WithUnit("s"))
	errorCounter, _ := meter.Int64Counter(metricName + ".errors")

	return pipegraph.WrapTask(task, func(ctx context.Context) error {
		startTime := time.Now()
		taskCounter.Add(ctx, 1)

		err := task.Run(ctx)

		taskDuration.Record(ctx, time.Since(startTime).Seconds())
		if err != nil {
			errorCounter.Add(ctx, 1)
		}
		return err
	})
}

// MeteredPool wraps a worker pool and records, under metricName, how many
// units were submitted, how long each waited for a worker, how long each
// ran, and how many are running at any moment.
func MeteredPool(metricName string, pool pipegraph.WorkerPool) pipegraph.WorkerPool {
	if pool == nil {
		panic("pool must be non-nil")
	}
	meter := otel.GetMeterProvider().Meter("otpg")

	mp := &meteredPool{pool: pool}
	mp.submitted, _ = meter.Int64Counter(metricName + ".submitted")
	mp.queued, _ = meter.Float64Histogram(metricName+".queued", metric.WithUnit("s"))
	mp.duration, _ = meter.Float64Histogram(metricName+".duration", metric.WithUnit("s"))
	mp.active, _ = meter.Int64UpDownCounter(metricName + ".active")
	return mp
}

type meteredPool struct {
	pool      pipegraph.WorkerPool
	submitted metric.Int64Counter
	queued    metric.Float64Histogram
	duration  metric.Float64Histogram
	active    metric.Int64UpDownCounter
}

func (mp *meteredPool) Submit(ctx context.Context, unit pipegraph.Unit) pipegraph.Handle {
	if unit == nil {
		panic("unit must be non-nil")
	}
	submitTime := time.Now()
	mp.submitted.Add(ctx, 1)
	return mp.pool.Submit(ctx, func(ctx context.Context) error {
		startTime := time.Now()
		mp.queued.Record(ctx, startTime.Sub(submitTime).Seconds())
		mp.active.Add(ctx, 1)
		defer func() {
			mp.active.Add(ctx, -1)
			mp.duration.Record(ctx, time.Since(startTime).Seconds())
		}()
		return unit(ctx)
	})
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pgprom_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"github.com/petenewcomb/pipegraph-go/pgprom"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestExporterTask(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	reg := prom.NewRegistry()
	exporter, err := pgprom.NewExporter("test", reg, pgprom.Options{})
	chk.NoError(err)

	failure := errors.New("boom")
	fail := false
	task := exporter.Task("load", pipegraph.TaskFunc(func(context.Context) error {
		if fail {
			return failure
		}
		return nil
	}))
	chk.NoError(task.Run(ctx))
	fail = true
	chk.ErrorIs(task.Run(ctx), failure)

	chk.NoError(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP test_task_failures_total Total number of task runs that returned an error.
# TYPE test_task_failures_total counter
test_task_failures_total{task="load"} 1
`), "test_task_failures_total"))

	chk.EqualValues(2, sampleCount(t, reg, "test_task_duration_seconds"))
}

func TestExporterSharesCollectors(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	reg := prom.NewRegistry()
	first, err := pgprom.NewExporter("", reg, pgprom.Options{})
	chk.NoError(err)
	second, err := pgprom.NewExporter("", reg, pgprom.Options{})
	chk.NoError(err)

	failure := errors.New("boom")
	fails := pipegraph.TaskFunc(func(context.Context) error { return failure })
	chk.Error(first.Task("t", fails).Run(ctx))
	chk.Error(second.Task("t", fails).Run(ctx))

	chk.NoError(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP pipegraph_task_failures_total Total number of task runs that returned an error.
# TYPE pipegraph_task_failures_total counter
pipegraph_task_failures_total{task="t"} 2
`), "pipegraph_task_failures_total"))
}

func TestExporterRegisterPool(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	reg := prom.NewRegistry()
	exporter, err := pgprom.NewExporter("test", reg, pgprom.Options{})
	chk.NoError(err)

	pool := pipegraph.NewWorkerPool(3)
	defer pool.Close()
	chk.NoError(exporter.RegisterPool("main", pool))
	chk.ErrorIs(exporter.RegisterPool("main", pool), pgprom.ErrDuplicatePool)
	chk.NoError(exporter.RegisterPool("other", pipegraph.NewWorkerPool(0)))

	started := make(chan struct{})
	release := make(chan struct{})
	h := pool.Submit(ctx, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	chk.NoError(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP test_pool_in_flight Units currently executing on the pool.
# TYPE test_pool_in_flight gauge
test_pool_in_flight{pool="main"} 1
test_pool_in_flight{pool="other"} 0
# HELP test_pool_limit Concurrency limit of the pool; zero means unlimited.
# TYPE test_pool_limit gauge
test_pool_limit{pool="main"} 3
test_pool_limit{pool="other"} 0
`), "test_pool_in_flight", "test_pool_limit"))

	close(release)
	chk.NoError(h.Wait(ctx))
	chk.Zero(pool.InFlight())
}

func TestExporterInPipeline(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	reg := prom.NewRegistry()
	exporter, err := pgprom.NewExporter("test", reg, pgprom.Options{DurationBuckets: []float64{0.1, 1}})
	chk.NoError(err)

	p := pipegraph.New()
	defer p.Close(ctx)
	a, err := p.CreateNode(exporter.Task("a", pipegraph.TaskFunc(func(context.Context) error { return nil })), nil, "a", 3)
	chk.NoError(err)
	chk.NoError(p.Register(a))
	chk.NoError(p.Init(ctx))
	chk.NoError(p.Run(ctx))

	// One observation per loop iteration.
	series, err := testutil.GatherAndCount(reg, "test_task_duration_seconds")
	chk.NoError(err)
	chk.Equal(1, series)
	chk.EqualValues(3, sampleCount(t, reg, "test_task_duration_seconds"))
}

// sampleCount returns the sample count of the single histogram named name.
func sampleCount(t *testing.T, reg *prom.Registry, name string) uint64 {
	chk := require.New(t)
	families, err := reg.Gather()
	chk.NoError(err)
	for _, mf := range families {
		if mf.GetName() == name {
			chk.Len(mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	chk.Failf("histogram not gathered", "%s", name)
	return 0
}

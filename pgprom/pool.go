// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pgprom

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolStats reports the occupancy of a worker pool. It is implemented by
// [pipegraph.GoroutinePool].
type PoolStats interface {
	InFlight() int
	Limit() int
}

// poolCollector reads the pool on every scrape rather than tracking
// submissions, so it stays accurate for units submitted by nested regions.
type poolCollector struct {
	pool     PoolStats
	inFlight *prom.Desc
	limit    *prom.Desc
}

func newPoolCollector(namespace, name string, pool PoolStats) *poolCollector {
	labels := prom.Labels{"pool": name}
	return &poolCollector{
		pool: pool,
		inFlight: prom.NewDesc(
			prom.BuildFQName(namespace, "pool", "in_flight"),
			"Units currently executing on the pool.",
			nil, labels,
		),
		limit: prom.NewDesc(
			prom.BuildFQName(namespace, "pool", "limit"),
			"Concurrency limit of the pool; zero means unlimited.",
			nil, labels,
		),
	}
}

func (c *poolCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.inFlight
	ch <- c.limit
}

func (c *poolCollector) Collect(ch chan<- prom.Metric) {
	ch <- prom.MustNewConstMetric(c.inFlight, prom.GaugeValue, float64(c.pool.InFlight()))
	ch <- prom.MustNewConstMetric(c.limit, prom.GaugeValue, float64(c.pool.Limit()))
}

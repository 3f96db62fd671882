// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package pipegraph schedules a graph of dependent units of work onto a
// worker pool. Units ([Element]s) declare which other units they wait on;
// the [Pipeline] partitions the resulting graph into an ordered sequence of
// batches, each holding only elements whose dependencies all lie in earlier
// batches, and executes the batches one after another with every element of
// a batch running concurrently.
//
// Three kinds of element exist. A [Node] runs a single user-supplied [Task].
// A [Cluster] runs an ordered list of elements one after another as a single
// unit, which is useful for chains that gain nothing from being scheduled
// separately. A [Region] encloses a whole sub-graph that is layered and
// executed on its own, yet appears to the enclosing graph as one unit, so
// graphs can be composed hierarchically.
//
// A pipeline has a simple lifecycle: build the graph, [Pipeline.Init] to
// freeze and validate it, [Pipeline.Run] as many times as needed,
// [Pipeline.Deinit], and finally [Pipeline.Close]. Structural mistakes
// (nil arguments, dependency cycles) are reported by the call that made or
// revealed them; execution failures are reported by Run after the batch
// containing the failure has fully drained.
//
// Execution goes through the [WorkerPool] interface. The default
// [GoroutinePool] bounds concurrency with a semaphore and lets a region give
// up its slot while it waits on its own sub-graph, so arbitrarily nested
// regions run even on a pool of size one.
//
// Companion packages add instrumentation and configuration: otpg wraps tasks
// and pools with zap logging and OpenTelemetry, pgprom exports them to
// Prometheus, and pgconfig builds pipeline options from HCL files.
package pipegraph

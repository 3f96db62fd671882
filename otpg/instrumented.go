// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otpg provides OpenTelemetry and zap instrumentation for pipegraph
// tasks and worker pools. Every wrapper returned by this package forwards the
// lifecycle hooks of the task it wraps through [pipegraph.WrapTask].
package otpg

import (
	pipegraph "github.com/petenewcomb/pipegraph-go"
)

// InstrumentedTask combines logging, metrics, and tracing for a task into a
// single wrapper.
func InstrumentedTask(operationName string, task pipegraph.Task) pipegraph.Task {
	// Apply wrappers inside-out so the span covers the metrics and logging
	// of the same execution.
	loggedTask := LoggedTask(operationName, task)
	metricsTask := MetricsTask(operationName, loggedTask)
	return TracedTask(operationName, metricsTask)
}

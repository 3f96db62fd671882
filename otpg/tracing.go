// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpg

import (
	"context"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// TracedTask adds a span with the given operation name around each
// execution of a task. The span is a child of whatever span the incoming
// context carries, which inside a pipeline run is the element's span.
// Failures are recorded on the span.
func TracedTask(operationName string, task pipegraph.Task) pipegraph.Task {
	return pipegraph.WrapTask(task, func(ctx context.Context) error {
		tracer := otel.Tracer("otpg")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()

		err := task.Run(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// executor drives the layers of one scope against a worker pool. It is
// shared by a pipeline's top level and by every region inside it.
type executor struct {
	pool   WorkerPool
	logger *zap.Logger
	tracer trace.Tracer
}

// withPool returns an executor that submits to pool. Pools are not compared:
// a WorkerPool's dynamic type need not be comparable.
func (x *executor) withPool(pool WorkerPool) *executor {
	return &executor{pool: pool, logger: x.logger, tracer: x.tracer}
}

// runLayers executes m's layers in order and returns how many leaf elements
// completed. It stops before the first batch that would start after a batch
// failure or after ctx has been canceled.
func (x *executor) runLayers(ctx context.Context, m *elementManager) (int, error) {
	executed := 0
	for i, layer := range m.layers {
		if err := ctx.Err(); err != nil {
			return executed, err
		}
		n, err := x.runBatch(ctx, m.label, i, layer)
		executed += n
		if err != nil {
			return executed, err
		}
	}
	return executed, nil
}

// runBatch submits every element of a layer before waiting on any of them,
// then waits on all of them even after a failure so that no work of this
// batch is still running when it returns. The first failure in submission
// order is returned.
func (x *executor) runBatch(ctx context.Context, scope string, index int, layer []*element) (int, error) {
	ctx, span := x.tracer.Start(ctx, "pipegraph.batch", trace.WithAttributes(
		attribute.String("pipegraph.scope", scope),
		attribute.Int("pipegraph.batch.index", index),
		attribute.Int("pipegraph.batch.size", len(layer)),
	))
	defer span.End()

	start := time.Now()
	x.logger.Debug("submitting batch",
		zap.String("scope", scope),
		zap.Int("batch", index),
		zap.Int("elements", len(layer)))

	handles := make([]Handle, len(layer))
	counts := make([]int, len(layer))
	for i, e := range layer {
		handles[i] = x.pool.Submit(ctx, func(ctx context.Context) error {
			n, err := x.runElement(ctx, e)
			counts[i] = n
			return err
		})
	}

	executed := 0
	var firstErr error
	for i, h := range handles {
		err := h.Wait(ctx)
		executed += counts[i]
		if err != nil && firstErr == nil {
			firstErr = &ElementError{Element: layer[i].self, Batch: index, Err: err}
		}
	}

	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, firstErr.Error())
		x.logger.Error("batch failed",
			zap.String("scope", scope),
			zap.Int("batch", index),
			zap.Duration("duration", time.Since(start)),
			zap.Error(firstErr))
		return executed, firstErr
	}
	x.logger.Debug("batch completed",
		zap.String("scope", scope),
		zap.Int("batch", index),
		zap.Int("executed", executed),
		zap.Duration("duration", time.Since(start)))
	return executed, nil
}

func (x *executor) runElement(ctx context.Context, e *element) (int, error) {
	ctx, span := x.tracer.Start(ctx, "pipegraph.element", trace.WithAttributes(
		attribute.String("pipegraph.element.name", e.name),
		attribute.String("pipegraph.element.id", e.id.String()),
		attribute.Int("pipegraph.element.loop", e.loop),
	))
	defer span.End()

	n, err := e.self.execute(ctx, x)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpg

import (
	"context"
	"time"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"go.uber.org/zap"
)

// LoggedTask adds structured logging to a task. Each execution logs its
// start and completion through the global zap logger, including timing
// information and any error returned.
func LoggedTask(operationName string, task pipegraph.Task) pipegraph.Task {
	return pipegraph.WrapTask(task, func(ctx context.Context) error {
		logger := zap.L()

		logger.Debug("Starting task",
			zap.String("operation", operationName),
			zap.String("component", "otpg"))

		startTime := time.Now()
		err := task.Run(ctx)
		duration := time.Since(startTime)

		if err != nil {
			logger.Error("Task failed",
				zap.String("operation", operationName),
				zap.String("component", "otpg"),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			logger.Debug("Task completed",
				zap.String("operation", operationName),
				zap.String("component", "otpg"),
				zap.Duration("duration", duration))
		}
		return err
	})
}

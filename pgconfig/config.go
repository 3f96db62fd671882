// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package pgconfig loads pipeline settings from HCL files.
//
// A configuration file holds one or more pipeline blocks. Every attribute is
// optional, and attributes in later blocks (and later files) override those
// in earlier ones. Expressions may refer to environment variables as
// env.NAME:
//
//	pipeline {
//	  name         = "nightly"
//	  worker_limit = 8
//	  log_level    = env.PIPEGRAPH_LOG_LEVEL
//	  log_format   = "json"
//	}
package pgconfig

import (
	"io"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"github.com/petenewcomb/pipegraph-go/internal/cerr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ErrInvalidConfig = cerr.Error("invalid pipeline configuration")

// Config holds the settings for constructing a [pipegraph.Pipeline].
type Config struct {
	// Name is the pipeline name. Empty means the pipeline's default.
	Name string

	// WorkerLimit is the concurrency limit of the pipeline's own worker pool.
	// It applies only if HasWorkerLimit is set; zero or less means unlimited.
	WorkerLimit    int
	HasWorkerLimit bool

	// LogLevel is one of "debug", "info", "warn" or "error".
	LogLevel string

	// LogFormat is "console" or "json".
	LogFormat string
}

// Default returns the configuration used when no file sets anything.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Validate reports whether every setting has an accepted value.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return ErrInvalidConfig.Wrapf("log_format %q is not one of console, json", c.LogFormat)
	}
	return nil
}

// Logger builds a zap logger writing to w at the configured level and in the
// configured format.
func (c *Config) Logger(w io.Writer) (*zap.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	switch c.LogFormat {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, ErrInvalidConfig.Wrapf("log_format %q is not one of console, json", c.LogFormat)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core), nil
}

// Options converts the configuration into pipeline options, with the
// pipeline's logger writing to w.
func (c *Config) Options(w io.Writer) ([]pipegraph.Option, error) {
	logger, err := c.Logger(w)
	if err != nil {
		return nil, err
	}
	opts := []pipegraph.Option{pipegraph.WithLogger(logger)}
	if c.Name != "" {
		opts = append(opts, pipegraph.WithName(c.Name))
	}
	if c.HasWorkerLimit {
		opts = append(opts, pipegraph.WithWorkerLimit(c.WorkerLimit))
	}
	return opts, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, ErrInvalidConfig.Wrapf("log_level %q is not one of debug, info, warn, error", s)
	}
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pgconfig_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	pipegraph "github.com/petenewcomb/pipegraph-go"
	"github.com/petenewcomb/pipegraph-go/pgconfig"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	chk := require.New(t)
	t.Setenv("PIPEGRAPH_TEST_LEVEL", "debug")

	cfg, err := pgconfig.Parse("test.hcl", []byte(`
pipeline {
  name         = "nightly"
  worker_limit = 8
  log_level    = env.PIPEGRAPH_TEST_LEVEL
  log_format   = "json"
}
`))
	chk.NoError(err)
	chk.Equal(&pgconfig.Config{
		Name:           "nightly",
		WorkerLimit:    8,
		HasWorkerLimit: true,
		LogLevel:       "debug",
		LogFormat:      "json",
	}, cfg)
}

func TestParseDefaults(t *testing.T) {
	chk := require.New(t)

	cfg, err := pgconfig.Parse("empty.hcl", nil)
	chk.NoError(err)
	chk.Equal(pgconfig.Default(), cfg)

	// Blocks meant for other tools are ignored.
	cfg, err = pgconfig.Parse("other.hcl", []byte(`
step "fetch" {
  url = "https://example.com"
}
pipeline {}
`))
	chk.NoError(err)
	chk.Equal(pgconfig.Default(), cfg)
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":            `pipeline {`,
		"unknown attribute": `pipeline { workers = 2 }`,
		"wrong type":        `pipeline { worker_limit = "many" }`,
		"missing env":       `pipeline { name = env.PIPEGRAPH_TEST_SURELY_UNSET }`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pgconfig.Parse("bad.hcl", []byte(src))
			require.ErrorContains(t, err, "bad.hcl")
		})
	}
}

func TestValidate(t *testing.T) {
	chk := require.New(t)

	_, err := pgconfig.Parse("level.hcl", []byte(`pipeline { log_level = "loud" }`))
	chk.ErrorIs(err, pgconfig.ErrInvalidConfig)
	chk.ErrorContains(err, "loud")

	_, err = pgconfig.Parse("format.hcl", []byte(`pipeline { log_format = "xml" }`))
	chk.ErrorIs(err, pgconfig.ErrInvalidConfig)

	cfg := pgconfig.Default()
	cfg.LogFormat = "yaml"
	_, err = cfg.Logger(&bytes.Buffer{})
	chk.ErrorIs(err, pgconfig.ErrInvalidConfig)
}

func TestLoadMergesFiles(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "conf.d/a.hcl", `
pipeline {
  name         = "base"
  worker_limit = 2
}
`)
	writeFile(t, dir, "conf.d/b.hcl", `
pipeline {
  log_level = "warn"
}
`)
	writeFile(t, dir, "conf.d/notes.txt", `pipeline {`)
	override := writeFile(t, dir, "override.hcl", `
pipeline {
  name = "override"
}
`)

	cfg, err := pgconfig.Load(ctx, filepath.Join(dir, "conf.d"), override)
	chk.NoError(err)
	chk.Equal("override", cfg.Name)
	chk.Equal(2, cfg.WorkerLimit)
	chk.True(cfg.HasWorkerLimit)
	chk.Equal("warn", cfg.LogLevel)
	chk.Equal("console", cfg.LogFormat)
}

func TestLoadErrors(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := pgconfig.Load(ctx, filepath.Join(dir, "missing.hcl"))
	chk.ErrorIs(err, os.ErrNotExist)

	bad := writeFile(t, dir, "bad.hcl", `pipeline { worker_limit = }`)
	_, err = pgconfig.Load(ctx, bad)
	chk.ErrorContains(err, "bad.hcl")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	good := writeFile(t, dir, "good.hcl", `pipeline {}`)
	_, err = pgconfig.Load(canceled, good)
	chk.ErrorIs(err, context.Canceled)
}

func TestOptionsConfigurePipeline(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()

	cfg, err := pgconfig.Parse("pipeline.hcl", []byte(`
pipeline {
  name         = "configured"
  worker_limit = 3
  log_format   = "json"
}
`))
	chk.NoError(err)

	var buf bytes.Buffer
	opts, err := cfg.Options(&buf)
	chk.NoError(err)
	p := pipegraph.New(opts...)
	defer p.Close(ctx)

	chk.Equal("configured", p.Name())
	pool, ok := p.WorkerPool().(*pipegraph.GoroutinePool)
	chk.True(ok)
	chk.Equal(3, pool.Limit())

	chk.NoError(p.Init(ctx))
	var entry map[string]any
	chk.NoError(json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &entry))
	chk.Equal("pipeline initialized", entry["msg"])
	chk.Equal("configured", entry["pipeline"])
	chk.Equal("info", entry["level"])
}

func TestLoggerLevel(t *testing.T) {
	chk := require.New(t)
	cfg := pgconfig.Default()
	cfg.LogLevel = "error"

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	chk.NoError(err)
	logger.Info("hidden")
	logger.Error("shown")
	chk.NotContains(buf.String(), "hidden")
	chk.Contains(buf.String(), "shown")
}

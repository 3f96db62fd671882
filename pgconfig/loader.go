// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pgconfig

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes the top level of a configuration file. Blocks other than
// pipeline are left to other consumers of the same file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type pipelineBlock struct {
	Name        *string `hcl:"name,optional"`
	WorkerLimit *int    `hcl:"worker_limit,optional"`
	LogLevel    *string `hcl:"log_level,optional"`
	LogFormat   *string `hcl:"log_format,optional"`
}

// Load reads every .hcl file named by paths, walking directories, and merges
// their pipeline blocks over [Default] in the order found. A path that does
// not exist is an error.
func Load(ctx context.Context, paths ...string) (*Config, error) {
	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	parser := hclparse.NewParser()
	evalCtx := newEvalContext()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := cfg.merge(hclFile.Body, evalCtx); err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads a configuration from src as if it were the only file, using
// filename in diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	cfg := Default()
	if err := cfg.merge(hclFile.Body, newEvalContext()); err != nil {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(body hcl.Body, evalCtx *hcl.EvalContext) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
		return diags
	}
	for _, block := range root.Pipelines {
		if block.Name != nil {
			c.Name = *block.Name
		}
		if block.WorkerLimit != nil {
			c.WorkerLimit = *block.WorkerLimit
			c.HasWorkerLimit = true
		}
		if block.LogLevel != nil {
			c.LogLevel = *block.LogLevel
		}
		if block.LogFormat != nil {
			c.LogFormat = *block.LogFormat
		}
	}
	return nil
}

// newEvalContext exposes the process environment as the env object.
func newEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		name, value, ok := strings.Cut(e, "=")
		if ok && hclsyntax.ValidIdentifier(name) {
			vars[name] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// findHCLFiles returns every .hcl file named by or beneath paths, each once,
// in the order given and lexically within directories.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

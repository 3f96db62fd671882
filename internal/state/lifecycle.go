// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// Stage represents the possible stages in a pipeline's lifecycle.
type Stage int32

const (
	// StageUninitialized indicates that the graph is still being built and
	// structural changes are accepted.
	StageUninitialized Stage = iota
	// StageInitialized indicates that the layering has been computed and the
	// structure is frozen.
	StageInitialized
	// StageRunning indicates that a run is in progress. A successful or failed
	// run returns the lifecycle to StageInitialized.
	StageRunning
	// StageDeinitialized is terminal.
	StageDeinitialized
)

func (s Stage) String() string {
	switch s {
	case StageUninitialized:
		return "uninitialized"
	case StageInitialized:
		return "initialized"
	case StageRunning:
		return "running"
	case StageDeinitialized:
		return "deinitialized"
	default:
		return "unknown"
	}
}

// Lifecycle tracks the stage of a pipeline. The zero value is
// StageUninitialized. All methods are safe for concurrent use so that misuse
// from more than one goroutine is detected rather than raced.
type Lifecycle struct {
	current atomic.Int32 // Contains a Stage value
}

// Load returns the current stage.
func (lc *Lifecycle) Load() Stage {
	return Stage(lc.current.Load())
}

// Is reports whether the lifecycle is currently in the given stage.
func (lc *Lifecycle) Is(s Stage) bool {
	return lc.Load() == s
}

// Transition attempts to move from one stage to another and reports whether
// it succeeded. It fails if the current stage is not from.
func (lc *Lifecycle) Transition(from, to Stage) bool {
	return lc.current.CompareAndSwap(int32(from), int32(to))
}

// Finish moves the lifecycle to StageDeinitialized from any non-running stage
// and returns the stage it left. If a run is in progress the lifecycle is left
// unchanged and StageRunning is returned.
func (lc *Lifecycle) Finish() Stage {
	for {
		s := lc.Load()
		if s == StageRunning || s == StageDeinitialized {
			return s
		}
		if lc.Transition(s, StageDeinitialized) {
			return s
		}
	}
}

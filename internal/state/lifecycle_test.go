// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycle_ZeroValue(t *testing.T) {
	chk := require.New(t)
	var lc Lifecycle
	chk.Equal(StageUninitialized, lc.Load())
	chk.True(lc.Is(StageUninitialized))
	chk.Equal("uninitialized", lc.Load().String())
}

func TestLifecycle_Transition(t *testing.T) {
	chk := require.New(t)
	var lc Lifecycle

	chk.False(lc.Transition(StageInitialized, StageRunning))
	chk.True(lc.Transition(StageUninitialized, StageInitialized))
	chk.True(lc.Transition(StageInitialized, StageRunning))
	chk.False(lc.Transition(StageInitialized, StageRunning))
	chk.Equal(StageRunning, lc.Load())
	chk.True(lc.Transition(StageRunning, StageInitialized))
	chk.Equal("initialized", lc.Load().String())
}

func TestLifecycle_Finish(t *testing.T) {
	chk := require.New(t)

	var fresh Lifecycle
	chk.Equal(StageUninitialized, fresh.Finish())
	chk.Equal(StageDeinitialized, fresh.Load())
	chk.Equal(StageDeinitialized, fresh.Finish())

	var running Lifecycle
	running.Transition(StageUninitialized, StageInitialized)
	running.Transition(StageInitialized, StageRunning)
	chk.Equal(StageRunning, running.Finish())
	chk.Equal(StageRunning, running.Load())

	running.Transition(StageRunning, StageInitialized)
	chk.Equal(StageInitialized, running.Finish())
	chk.Equal(StageDeinitialized, running.Load())
	chk.Equal("deinitialized", running.Load().String())
}

func TestLifecycle_ConcurrentRunsExclusive(t *testing.T) {
	chk := require.New(t)
	var lc Lifecycle
	lc.Transition(StageUninitialized, StageInitialized)

	const goroutines = 16
	var running, overlaps atomic.Int32
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if !lc.Transition(StageInitialized, StageRunning) {
					continue
				}
				if running.Add(1) > 1 {
					overlaps.Add(1)
				}
				running.Add(-1)
				lc.Transition(StageRunning, StageInitialized)
			}
		}()
	}
	wg.Wait()
	chk.Zero(overlaps.Load())
	chk.Equal(StageInitialized, lc.Load())
}

func TestStage_StringUnknown(t *testing.T) {
	require.Equal(t, "unknown", Stage(42).String())
}

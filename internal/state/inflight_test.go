// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInFlightCounter(t *testing.T) {
	chk := require.New(t)
	var c InFlightCounter
	chk.True(c.IsZero())

	chk.True(c.Increment())
	chk.False(c.Increment())
	chk.Equal(2, c.Load())
	chk.False(c.Decrement())
	chk.True(c.Decrement())
	chk.True(c.IsZero())

	chk.PanicsWithValue("there were no units in flight", func() {
		c.Decrement()
	})
}

func TestInFlightCounter_Concurrent(t *testing.T) {
	chk := require.New(t)
	var c InFlightCounter
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.Increment()
				c.Decrement()
			}
		}()
	}
	wg.Wait()
	chk.True(c.IsZero())
}

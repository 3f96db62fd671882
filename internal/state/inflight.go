// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// InFlightCounter counts units of work that have been started but have not
// yet completed. It is safe for concurrent use.
type InFlightCounter struct {
	v atomic.Int64
}

// Increment increments the counter and returns true if it was previously
// zero.
func (c *InFlightCounter) Increment() bool {
	return c.v.Add(1) == 1
}

// Decrement decrements the counter and returns true if it has reached zero.
// It panics if the counter would become negative.
func (c *InFlightCounter) Decrement() bool {
	newValue := c.v.Add(-1)
	if newValue < 0 {
		panic("there were no units in flight")
	}
	return newValue == 0
}

// Load returns the current count.
func (c *InFlightCounter) Load() int {
	return int(c.v.Load())
}

// IsZero reports whether nothing is in flight.
func (c *InFlightCounter) IsZero() bool {
	return c.v.Load() == 0
}

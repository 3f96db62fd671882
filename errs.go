// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"fmt"
	"strings"
)

type constError string

func (e constError) Error() string {
	return string(e)
}

const ErrNullArgument = constError("nil element or task")
const ErrNotInitialized = constError("pipeline not initialized")
const ErrCycleDetected = constError("cycle or unsatisfiable dependency detected")
const ErrBatchExecution = constError("batch execution failed")
const ErrRunSizeMismatch = constError("run size mismatch")
const ErrNoWorkerPool = constError("no worker pool")
const ErrInvalidLoop = constError("loop count must not be negative")
const ErrForeignElement = constError("element belongs to another pipeline")
const ErrAlreadyOwned = constError("element already belongs to a scope")
const ErrRunInProgress = constError("run already in progress")
const ErrDeinitialized = constError("pipeline deinitialized")
const ErrPoolClosed = constError("worker pool closed")
const ErrTaskPanic = constError("task panicked")

// ErrStructureFrozen is returned by structural operations attempted once the
// pipeline has been initialized. It matches ErrNotInitialized as well, since
// both signal a call made in the wrong lifecycle stage.
var ErrStructureFrozen error = frozenError{}

type frozenError struct{}

func (frozenError) Error() string {
	return "pipeline structure is frozen after init"
}

func (frozenError) Is(target error) bool {
	return target == ErrNotInitialized
}

// An ElementError reports the failure of a single element during a run. It
// matches both ErrBatchExecution and the element's own error under
// [errors.Is].
type ElementError struct {
	Element Element
	Batch   int
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("batch %d: element %q failed: %v", e.Batch, e.Element.Name(), e.Err)
}

func (e *ElementError) Unwrap() []error {
	return []error{ErrBatchExecution, e.Err}
}

// A CycleError lists the elements that could not be placed in any layer.
type CycleError struct {
	Unplaced []Element
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Unplaced))
	for i, el := range e.Unplaced {
		names[i] = fmt.Sprintf("%q", el.Name())
	}
	return fmt.Sprintf("%v: %d element(s) could not be placed: %s",
		ErrCycleDetected, len(e.Unplaced), strings.Join(names, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

func runSizeMismatch(scope string, expected, executed int) error {
	return fmt.Errorf("%w: %s expected %d executed element(s), got %d",
		ErrRunSizeMismatch, scope, expected, executed)
}

func taskPanic(value any) error {
	return fmt.Errorf("%w: %v", ErrTaskPanic, value)
}

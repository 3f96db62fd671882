// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package cerr provides a string type for declaring sentinel errors as
// constants.
package cerr

import "fmt"

type Error string

func (e Error) Error() string {
	return string(e)
}

// Wrapf returns an error that matches e under errors.Is and carries the
// formatted detail in its message.
func (e Error) Wrapf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package cerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const errTest = Error("test error")

func TestError(t *testing.T) {
	chk := require.New(t)
	chk.Equal("test error", errTest.Error())

	err := errTest.Wrapf("value %d out of range", 7)
	chk.ErrorIs(err, errTest)
	chk.Equal("test error: value 7 out of range", err.Error())
	chk.False(errors.Is(Error("other"), errTest))
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package unsafestring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBytes(t *testing.T) {
	for _, input := range [][]byte{
		nil,
		[]byte("Float"),
		[]byte("msgpack"),
	} {
		var s string
		allocs := testing.AllocsPerRun(1, func() {
			s = FromBytes(input)
		})
		require.Zero(t, allocs)
		require.Equal(t, string(input), s)
	}
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ondisk

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// createUnlinkedTestFile creates a test file that is already removed from the
// file system -- just close it (or exit the program) and it will be cleaned up.
func createUnlinkedTestFile() *os.File {
	f, err := os.CreateTemp("", "icf-internal-ondisk.*.test")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	return f
}

func TestU32Slice(t *testing.T) {
	const tableLen = 12
	var vals []uint32
	for i := 0; i < tableLen; i++ {
		vals = append(vals, uint32(i*2))
	}
	f := createUnlinkedTestFile()
	_, err := f.Write([]byte("prefix!!"))
	require.NoError(t, err)
	_, err = f.Write(AppendU32s(nil, vals...))
	require.NoError(t, err)

	table := NewU32Slice(f, tableLen, 8)
	require.Equal(t, tableLen, table.Len())
	_, err = table.Get(12)
	require.Error(t, err)
	_, err = table.Get(-1)
	require.Error(t, err)
	for i := 0; i < tableLen; i++ {
		v, err := table.Get(i)
		require.NoError(t, err)
		require.Equal(t, uint32(i*2), v)
	}
	all, err := table.ReadAll()
	require.NoError(t, err)
	require.Equal(t, vals, all)

	// if we truncate the file, reads should fail
	require.NoError(t, f.Truncate(0))
	_, err = table.Get(0)
	require.Error(t, err)
	_, err = table.ReadAll()
	require.Error(t, err)

	// if we close a file, we expect errors
	_ = f.Close()
	_, err = table.Get(0)
	require.Error(t, err)
}

func TestDecodeU32s(t *testing.T) {
	b := AppendU32s([]byte{}, 1, 0xdeadbeef, 3)
	require.Equal(t, 12, len(b))
	vals, err := DecodeU32s(b, 3)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 0xdeadbeef, 3}, vals)

	_, err = DecodeU32s(b, 4)
	require.Error(t, err)

	vals, err = DecodeU32s(nil, 0)
	require.NoError(t, err)
	require.Empty(t, vals)

	table := NewU32Slice(bytes.NewReader(b), 3, 0)
	v, err := table.Get(1)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), v)
}

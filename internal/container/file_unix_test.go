// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build unix

package container

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondWriterIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.icf")
	cfg := testConfig(ProtocolICF)

	f, err := Open(path, ModeTruncate, cfg)
	require.NoError(t, err)
	require.NoError(t, f.Write([]byte("kept")))
	require.NoError(t, f.Flush())

	_, err = Open(path, ModeAppend, cfg)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = Open(path, ModeTruncate, cfg)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = NewWriter(path, testConfig(ProtocolSOF))
	assert.ErrorIs(t, err, ErrLocked)

	// readers don't need the lock
	r, err := Open(path, ModeRead, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Size())
	require.NoError(t, r.Close())

	require.NoError(t, f.Close())
	f, err = Open(path, ModeAppend, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.Size())
	require.NoError(t, f.Close())
}

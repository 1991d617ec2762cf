// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bunchbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictsOldest(t *testing.T) {
	const size = 4
	b := New[int64, []byte](size)
	for i := int64(0); i < size; i++ {
		b.Put(i, []byte{byte(i)})
	}
	require.Equal(t, size, b.Len())

	b.Put(size, []byte{size})
	require.Equal(t, size, b.Len())
	assert.False(t, has(b, 0))
	for i := int64(1); i <= size; i++ {
		v, ok := b.Get(i)
		require.True(t, ok)
		require.Equal(t, []byte{byte(i)}, v)
	}
}

func TestGetDoesNotRefresh(t *testing.T) {
	b := New[string, int](2)
	b.Put("a", 1)
	b.Put("b", 2)
	_, ok := b.Get("a")
	require.True(t, ok)
	b.Put("c", 3)
	assert.False(t, has(b, "a"))
	assert.True(t, has(b, "b"))
	assert.True(t, has(b, "c"))
}

func TestPutExistingUpdatesInPlace(t *testing.T) {
	b := New[string, int](2)
	b.Put("a", 1)
	b.Put("b", 2)
	b.Put("a", 10)
	require.Equal(t, 2, b.Len())
	v, _ := b.Get("a")
	require.Equal(t, 10, v)

	// "a" kept its original queue position, so it goes first
	b.Put("c", 3)
	assert.False(t, has(b, "a"))
	assert.True(t, has(b, "b"))
}

func TestResetAndMinimumSize(t *testing.T) {
	b := New[int, int](0)
	b.Put(1, 1)
	b.Put(2, 2)
	require.Equal(t, 1, b.Len())
	require.True(t, has(b, 2))

	b.Reset()
	require.Equal(t, 0, b.Len())
	require.False(t, has(b, 2))
}

func has[K comparable, V any](b *Buffer[K, V], key K) bool {
	_, ok := b.Get(key)
	return ok
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package bunchbuf holds recently decompressed bunch payloads so
// neighbouring record reads don't decompress the same bunch again.
//
// Eviction is strictly first-in first-out: a Get does not refresh an
// entry, and re-putting a resident key updates its value in place
// without moving it in the queue.  A Buffer is not safe for concurrent
// use.
package bunchbuf

// Buffer is a bounded FIFO cache.
type Buffer[K comparable, V any] struct {
	size    int
	entries map[K]V
	order   []K // insertion order, oldest first
}

// New returns a Buffer retaining at most size entries.  A size below 1
// is treated as 1.
func New[K comparable, V any](size int) *Buffer[K, V] {
	if size < 1 {
		size = 1
	}
	return &Buffer[K, V]{
		size:    size,
		entries: make(map[K]V, size),
		order:   make([]K, 0, size),
	}
}

func (b *Buffer[K, V]) Get(key K) (V, bool) {
	v, ok := b.entries[key]
	return v, ok
}

// Put stores value under key, evicting the oldest entry if the buffer
// is full.
func (b *Buffer[K, V]) Put(key K, value V) {
	if _, ok := b.entries[key]; ok {
		b.entries[key] = value
		return
	}
	if len(b.order) >= b.size {
		oldest := b.order[0]
		delete(b.entries, oldest)
		var zero K
		b.order[0] = zero
		b.order = b.order[1:]
	}
	b.entries[key] = value
	b.order = append(b.order, key)
}

func (b *Buffer[K, V]) Len() int {
	return len(b.order)
}

// Reset drops every entry.
func (b *Buffer[K, V]) Reset() {
	clear(b.entries)
	b.order = b.order[:0]
}

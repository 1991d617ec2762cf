// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package bitset tracks which bunches of a container have already had
// their checksums verified.
package bitset

// Bitset is an in-memory bitmap that is conceptually similar to []bool, but more memory efficient.
type Bitset struct {
	bits   []uint64
	length int64
}

func getOffsets(off int64) (sliceOff int64, bitOff uint64) {
	sliceOff = off / 64
	bitOff = uint64(off) % 64
	return
}

// Set sets the bit at position `off` to 1.
func (b *Bitset) Set(off int64) {
	if off < 0 || off >= b.length {
		return
	}
	sliceOff, bitOff := getOffsets(off)
	b.bits[sliceOff] |= 1 << bitOff
}

// IsSet returns true if the bit at position `off` is 1.
func (b *Bitset) IsSet(off int64) bool {
	if off < 0 || off >= b.length {
		return false
	}
	sliceOff, bitOff := getOffsets(off)
	return b.bits[sliceOff]&(1<<bitOff) != 0
}

// Len is the number of addressable bits.
func (b *Bitset) Len() int64 {
	return b.length
}

// Grow extends the bitset to hold at least length bits.  Existing bits
// keep their values and new bits start cleared.  Shrinking is a no-op.
func (b *Bitset) Grow(length int64) {
	if length <= b.length {
		return
	}
	sliceLen := (length + 63) / 64
	if sliceLen > int64(len(b.bits)) {
		bits := make([]uint64, sliceLen)
		copy(bits, b.bits)
		b.bits = bits
	}
	b.length = length
}

// New returns a new in-memory bitset where you can set and test individual bits.
func New(length int64) *Bitset {
	sliceLen := (length + 63) / 64
	return &Bitset{
		bits:   make([]uint64, sliceLen),
		length: length,
	}
}

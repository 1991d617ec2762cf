// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk reads and writes the little-endian u32 tables that
// follow bunch payloads and frame payloads.
package ondisk

import (
	"encoding/binary"
	"fmt"
	"io"
)

// U32Slice is a view of n consecutive little-endian uint32 values
// starting at byte offset off of r.
type U32Slice struct {
	r   io.ReaderAt
	len int   // length in number of elements
	off int64 // offset in bytes of the start of this slice
}

func NewU32Slice(r io.ReaderAt, len int, off int64) *U32Slice {
	return &U32Slice{
		r:   r,
		len: len,
		off: off,
	}
}

func (s *U32Slice) Len() int {
	return s.len
}

func (s *U32Slice) Get(i int) (uint32, error) {
	if i < 0 || i >= s.len {
		return 0, fmt.Errorf("offset (%d) out of range (len %d)", i, s.len)
	}
	var buf [4]byte
	if _, err := s.r.ReadAt(buf[:], s.off+int64(4*i)); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadAll loads the whole table with a single read.
func (s *U32Slice) ReadAll() ([]uint32, error) {
	buf := make([]byte, 4*s.len)
	if _, err := s.r.ReadAt(buf, s.off); err != nil {
		return nil, err
	}
	return DecodeU32s(buf, s.len)
}

// DecodeU32s decodes the first n little-endian uint32 values of b.
func DecodeU32s(b []byte, n int) ([]uint32, error) {
	if n < 0 || len(b) < 4*n {
		return nil, fmt.Errorf("u32 table of %d entries needs %d bytes, have %d", n, 4*n, len(b))
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out, nil
}

// AppendU32s appends vals to dst in little-endian order.
func AppendU32s(dst []byte, vals ...uint32) []byte {
	for _, v := range vals {
		dst = binary.LittleEndian.AppendUint32(dst, v)
	}
	return dst
}

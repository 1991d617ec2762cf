// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"fmt"
)

// DType is the on-disk element type code of an Array.
type DType uint8

const (
	Uint8      DType = 1
	Int8       DType = 2
	Uint16     DType = 3
	Int16      DType = 4
	Uint32     DType = 5
	Int32      DType = 6
	Uint64     DType = 7
	Int64      DType = 8
	Float16    DType = 9
	Float32    DType = 10
	Float64    DType = 11
	Float128   DType = 12
	Complex64  DType = 13
	Complex128 DType = 14
)

type dtypeInfo struct {
	name     string
	itemSize int
	// swapUnit is the width of each byte-swapped component: complex
	// elements swap their real and imaginary halves separately.
	swapUnit int
}

var dtypes = [...]dtypeInfo{
	Uint8:      {"uint8", 1, 1},
	Int8:       {"int8", 1, 1},
	Uint16:     {"uint16", 2, 2},
	Int16:      {"int16", 2, 2},
	Uint32:     {"uint32", 4, 4},
	Int32:      {"int32", 4, 4},
	Uint64:     {"uint64", 8, 8},
	Int64:      {"int64", 8, 8},
	Float16:    {"float16", 2, 2},
	Float32:    {"float32", 4, 4},
	Float64:    {"float64", 8, 8},
	Float128:   {"float128", 16, 16},
	Complex64:  {"complex64", 8, 4},
	Complex128: {"complex128", 16, 8},
}

func (d DType) info() (dtypeInfo, error) {
	if d == 0 || int(d) >= len(dtypes) {
		return dtypeInfo{}, fmt.Errorf("dtype code %d: %w", uint8(d), ErrUnknownDtype)
	}
	return dtypes[d], nil
}

// Valid reports whether d is in the dtype table.
func (d DType) Valid() bool {
	_, err := d.info()
	return err == nil
}

// ItemSize is the width of one element in bytes, or 0 for unknown codes.
func (d DType) ItemSize() int {
	info, _ := d.info()
	return info.itemSize
}

func (d DType) String() string {
	info, err := d.info()
	if err != nil {
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
	return info.name
}

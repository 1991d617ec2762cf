// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Array is a dense n-dimensional array of fixed-width elements.  Data
// holds the elements in row-major order and host byte order.
type Array struct {
	DType DType
	Shape []int
	Data  []byte
}

// Numeric are the element types with a native Go representation.
// float16 and float128 arrays are only reachable through Array.Data.
type Numeric interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 |
		float32 | float64 | complex64 | complex128
}

func dtypeOf[T Numeric]() DType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int8:
		return Int8
	case uint16:
		return Uint16
	case int16:
		return Int16
	case uint32:
		return Uint32
	case int32:
		return Int32
	case uint64:
		return Uint64
	case int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	panic("unreachable")
}

// NewArray copies vals into an Array with the given shape.  The product
// of shape must equal len(vals); a nil shape means a 1-d array.
func NewArray[T Numeric](shape []int, vals []T) (Array, error) {
	if shape == nil {
		shape = []int{len(vals)}
	}
	n, err := elements(shape)
	if err != nil {
		return Array{}, err
	}
	if n != len(vals) {
		return Array{}, fmt.Errorf("shape %v holds %d elements, got %d: %w", shape, n, len(vals), ErrMalformed)
	}
	dt := dtypeOf[T]()
	data := make([]byte, len(vals)*dt.ItemSize())
	if len(vals) > 0 {
		copy(data, unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vals))), len(data)))
	}
	return Array{DType: dt, Shape: append([]int(nil), shape...), Data: data}, nil
}

// ArrayValues copies the elements of a out as a []T.  T must match the
// array's dtype.
func ArrayValues[T Numeric](a Array) ([]T, error) {
	if dt := dtypeOf[T](); dt != a.DType {
		return nil, fmt.Errorf("array holds %s, not %s", a.DType, dt)
	}
	size := a.DType.ItemSize()
	if len(a.Data)%size != 0 {
		return nil, fmt.Errorf("array data of %d bytes is not a multiple of %d: %w", len(a.Data), size, ErrMalformed)
	}
	out := make([]T, len(a.Data)/size)
	if len(out) > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(out))), len(a.Data)), a.Data)
	}
	return out, nil
}

// Len is the number of elements implied by Shape.
func (a Array) Len() int {
	n, _ := elements(a.Shape)
	return n
}

func elements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 || uint64(d) > math.MaxUint32 {
			return 0, fmt.Errorf("extent %d out of range: %w", d, ErrMalformed)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("shape %v overflows: %w", shape, ErrMalformed)
		}
		n *= d
	}
	return n, nil
}

var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// swapUnits reverses the byte order of every unit-byte group of b in place.
func swapUnits(b []byte, unit int) {
	if unit <= 1 {
		return
	}
	for off := 0; off+unit <= len(b); off += unit {
		g := b[off : off+unit]
		for i, j := 0, unit-1; i < j; i, j = i+1, j-1 {
			g[i], g[j] = g[j], g[i]
		}
	}
}

type arrayCodec struct{}

func (arrayCodec) Name() string   { return "Array" }
func (arrayCodec) Module() string { return "" }
func (arrayCodec) Tag() byte      { return 'a' }

func (arrayCodec) Encode(dst []byte, v Value) ([]byte, error) {
	a, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("Array codec: unexpected %T", v)
	}
	info, err := a.DType.info()
	if err != nil {
		return nil, err
	}
	if len(a.Shape) > math.MaxUint8 {
		return nil, fmt.Errorf("%d dimensions, at most 255 supported: %w", len(a.Shape), ErrMalformed)
	}
	n, err := elements(a.Shape)
	if err != nil {
		return nil, err
	}
	if n > len(a.Data)/info.itemSize || n*info.itemSize != len(a.Data) {
		return nil, fmt.Errorf("shape %v of %s doesn't match %d bytes: %w", a.Shape, a.DType, len(a.Data), ErrMalformed)
	}
	dst = append(dst, byte(a.DType), byte(len(a.Shape)))
	for _, d := range a.Shape {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(d))
	}
	start := len(dst)
	dst = append(dst, a.Data...)
	if !hostLittleEndian {
		swapUnits(dst[start:], info.swapUnit)
	}
	return dst, nil
}

func (arrayCodec) Decode(data []byte) (Value, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("array header: %w", ErrMalformed)
	}
	dt := DType(data[0])
	info, err := dt.info()
	if err != nil {
		return nil, err
	}
	ndim := int(data[1])
	data = data[2:]
	if len(data) < 4*ndim {
		return nil, fmt.Errorf("array extents: %w", ErrMalformed)
	}
	shape := make([]int, ndim)
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(data[4*i:]))
	}
	data = data[4*ndim:]
	n, err := elements(shape)
	if err != nil {
		return nil, err
	}
	if n > len(data)/info.itemSize || n*info.itemSize != len(data) {
		return nil, fmt.Errorf("shape %v of %s needs %d elements, have %d bytes: %w", shape, dt, n, len(data), ErrMalformed)
	}
	out := make([]byte, len(data))
	copy(out, data)
	if !hostLittleEndian {
		swapUnits(out, info.swapUnit)
	}
	return Array{DType: dt, Shape: shape, Data: out}, nil
}

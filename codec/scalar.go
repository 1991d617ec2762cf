// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"unicode/utf8"
)

type textCodec struct{}

func (textCodec) Name() string   { return "Text" }
func (textCodec) Module() string { return "" }
func (textCodec) Tag() byte      { return 'u' }

func (textCodec) Encode(dst []byte, v Value) ([]byte, error) {
	s, ok := v.(Text)
	if !ok {
		return nil, fmt.Errorf("Text codec: unexpected %T", v)
	}
	if !utf8.ValidString(string(s)) {
		return nil, fmt.Errorf("text is not valid UTF-8: %w", ErrMalformed)
	}
	return append(dst, s...), nil
}

func (textCodec) Decode(data []byte) (Value, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text is not valid UTF-8: %w", ErrMalformed)
	}
	return Text(data), nil
}

type bytesCodec struct{}

func (bytesCodec) Name() string   { return "Bytes" }
func (bytesCodec) Module() string { return "" }
func (bytesCodec) Tag() byte      { return 'b' }

func (bytesCodec) Encode(dst []byte, v Value) ([]byte, error) {
	b, ok := v.(Bytes)
	if !ok {
		return nil, fmt.Errorf("Bytes codec: unexpected %T", v)
	}
	return append(dst, b...), nil
}

func (bytesCodec) Decode(data []byte) (Value, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return Bytes(out), nil
}

// maxIntLen is the widest integer encoding accepted: the guard byte on
// top of a full 64-bit magnitude.
const maxIntLen = 9

type intCodec struct{}

func (intCodec) Name() string   { return "Int" }
func (intCodec) Module() string { return "" }
func (intCodec) Tag() byte      { return 'i' }

// intLen is bitlen(|v|)/8 + 1, so there is always room for the sign bit.
func intLen(v int64) int {
	mag := uint64(v)
	if v < 0 {
		mag = -mag
	}
	return bits.Len64(mag)/8 + 1
}

func (intCodec) Encode(dst []byte, v Value) ([]byte, error) {
	i, ok := v.(Int)
	if !ok {
		return nil, fmt.Errorf("Int codec: unexpected %T", v)
	}
	n := intLen(int64(i))
	var buf [maxIntLen]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(i))
	if i < 0 {
		buf[8] = 0xff
	}
	return append(dst, buf[:n]...), nil
}

func (intCodec) Decode(data []byte) (Value, error) {
	n := len(data)
	if n == 0 || n > maxIntLen {
		return nil, fmt.Errorf("%d byte integer: %w", n, ErrMalformed)
	}
	var buf [8]byte
	copy(buf[:], data)
	negative := data[min(n, 8)-1]&0x80 != 0
	if n < 8 && negative {
		for i := n; i < 8; i++ {
			buf[i] = 0xff
		}
	}
	u := binary.LittleEndian.Uint64(buf[:])
	if n == maxIntLen {
		// the guard byte must be the sign extension of the low 64 bits
		guard := data[8]
		if (guard != 0 && guard != 0xff) || (guard == 0xff) != negative {
			return nil, fmt.Errorf("integer overflows int64: %w", ErrMalformed)
		}
	}
	return Int(int64(u)), nil
}

type floatCodec struct{}

func (floatCodec) Name() string   { return "Float" }
func (floatCodec) Module() string { return "" }
func (floatCodec) Tag() byte      { return 'f' }

func (floatCodec) Encode(dst []byte, v Value) ([]byte, error) {
	f, ok := v.(Float)
	if !ok {
		return nil, fmt.Errorf("Float codec: unexpected %T", v)
	}
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(f))), nil
}

func (floatCodec) Decode(data []byte) (Value, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("float needs 8 bytes, have %d: %w", len(data), ErrMalformed)
	}
	return Float(math.Float64frombits(binary.LittleEndian.Uint64(data))), nil
}

type complexCodec struct{}

func (complexCodec) Name() string   { return "Complex" }
func (complexCodec) Module() string { return "" }
func (complexCodec) Tag() byte      { return 'c' }

func (complexCodec) Encode(dst []byte, v Value) ([]byte, error) {
	c, ok := v.(Complex)
	if !ok {
		return nil, fmt.Errorf("Complex codec: unexpected %T", v)
	}
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(real(c)))
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(imag(c))), nil
}

func (complexCodec) Decode(data []byte) (Value, error) {
	if len(data) != 16 {
		return nil, fmt.Errorf("complex needs 16 bytes, have %d: %w", len(data), ErrMalformed)
	}
	re := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
	im := math.Float64frombits(binary.LittleEndian.Uint64(data[8:]))
	return Complex(complex(re, im)), nil
}

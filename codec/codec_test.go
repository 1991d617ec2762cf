// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustArray[T Numeric](t *testing.T, shape []int, vals []T) Array {
	t.Helper()
	a, err := NewArray(shape, vals)
	require.NoError(t, err)
	return a
}

func TestRoundTrip(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Msgpack()))

	for _, v := range []Value{
		Text(""),
		Text("héllo, wörld"),
		Bytes{},
		Bytes{0, 1, 2, 0xff},
		Int(0),
		Int(1),
		Int(-1),
		Int(127),
		Int(128),
		Int(-128),
		Int(-129),
		Int(math.MaxInt64),
		Int(math.MinInt64),
		Float(0),
		Float(-2.5),
		Float(math.Inf(1)),
		Float(math.SmallestNonzeroFloat64),
		Complex(complex(1.5, -2.25)),
		mustArray(t, []int{2, 3}, []float64{1, 2, 3, 4, 5, math.Pi}),
		mustArray(t, nil, []int8{-1, 0, 1}),
		mustArray(t, []int{0}, []uint16{}),
		mustArray(t, []int{}, []complex64{complex(1, 2)}),
		mustArray(t, []int{2, 2}, []complex128{1, 2i, -3, 4 + 4i}),
		Sequence{Type: List, Items: []Value{}},
		Sequence{Type: Tuple, Items: []Value{Int(1), Text("two"), Float(3)}},
		Sequence{Type: Set, Items: []Value{
			Sequence{Type: List, Items: []Value{Bytes("nested")}},
			mustArray(t, nil, []uint32{7, 8, 9}),
		}},
		NewMsgpack(map[string]any{"b": "x", "a": []any{"y", "z"}}),
	} {
		data, err := r.Marshal(v)
		require.NoError(t, err)
		got, err := r.Unmarshal(data)
		require.NoError(t, err, "%#v", v)
		if ext, ok := v.(Ext); ok {
			gotExt, ok := got.(Ext)
			require.True(t, ok)
			assert.Equal(t, ext.Codec, gotExt.Codec)
			assert.Equal(t, ext.Module, gotExt.Module)
			assert.Equal(t, ext.Value, gotExt.Value)
			continue
		}
		assert.Equal(t, v, got)
	}
}

func TestFloatBitExact(t *testing.T) {
	r := NewRegistry()
	nan := math.Float64frombits(0x7ff8000000000abc)
	data, err := r.Marshal(Float(nan))
	require.NoError(t, err)
	got, err := r.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, uint64(0x7ff8000000000abc), math.Float64bits(float64(got.(Float))))

	negZero := math.Copysign(0, -1)
	data, err = r.Marshal(Float(negZero))
	require.NoError(t, err)
	require.Equal(t, []byte{'f', 0, 0, 0, 0, 0, 0, 0, 0x80}, data)
}

func TestIntEncoding(t *testing.T) {
	for _, tc := range []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0xff}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x00}},
		{255, []byte{0xff, 0x00}},
		{-128, []byte{0x80, 0xff}},
		{-129, []byte{0x7f, 0xff}},
		{256, []byte{0x00, 0x01}},
		{math.MaxInt64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}},
		{math.MinInt64, []byte{0, 0, 0, 0, 0, 0, 0, 0x80, 0xff}},
	} {
		got, err := intCodec{}.Encode(nil, Int(tc.v))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%d", tc.v)
		v, err := intCodec{}.Decode(tc.want)
		require.NoError(t, err)
		assert.Equal(t, Int(tc.v), v)
	}

	// guard byte disagreeing with the sign is an overflow
	_, err := intCodec{}.Decode([]byte{0, 0, 0, 0, 0, 0, 0, 0x80, 0x00})
	require.ErrorIs(t, err, ErrMalformed)
	_, err = intCodec{}.Decode(make([]byte, 10))
	require.ErrorIs(t, err, ErrMalformed)
	_, err = intCodec{}.Decode(nil)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestArrayWireFormat(t *testing.T) {
	a := mustArray(t, []int{1, 2}, []uint16{0x0102, 0x0304})
	got, err := arrayCodec{}.Encode(nil, a)
	require.NoError(t, err)
	want := []byte{
		byte(Uint16), 2,
		1, 0, 0, 0,
		2, 0, 0, 0,
		0x02, 0x01, 0x04, 0x03,
	}
	require.Equal(t, want, got)

	vals, err := ArrayValues[uint16](a)
	require.NoError(t, err)
	require.Equal(t, []uint16{0x0102, 0x0304}, vals)

	_, err = ArrayValues[int16](a)
	require.Error(t, err)
}

func TestArrayErrors(t *testing.T) {
	_, err := arrayCodec{}.Decode([]byte{99, 0})
	require.ErrorIs(t, err, ErrUnknownDtype)
	_, err = arrayCodec{}.Decode([]byte{0, 0})
	require.ErrorIs(t, err, ErrUnknownDtype)

	// data shorter than the shape needs
	_, err = arrayCodec{}.Decode([]byte{byte(Int32), 1, 2, 0, 0, 0, 1, 2, 3, 4})
	require.ErrorIs(t, err, ErrMalformed)
	// truncated extents
	_, err = arrayCodec{}.Decode([]byte{byte(Int32), 2, 2, 0, 0, 0})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = NewArray([]int{2, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = arrayCodec{}.Encode(nil, Array{DType: Float64, Shape: []int{3}, Data: make([]byte, 16)})
	require.ErrorIs(t, err, ErrMalformed)

	// 2^61 float64 elements is 2^64 bytes, which wraps to zero in an int
	hi := 1 << 30
	huge := Array{DType: Float64, Shape: []int{2 * hi, hi}}
	_, err = arrayCodec{}.Encode(nil, huge)
	require.ErrorIs(t, err, ErrMalformed)
	_, err = NewRegistry().Marshal(huge)
	require.ErrorIs(t, err, ErrMalformed)

	// float16 and float128 only go through raw data
	half := Array{DType: Float16, Shape: []int{2}, Data: []byte{0x00, 0x3c, 0x00, 0xc0}}
	r := NewRegistry()
	data, err := r.Marshal(half)
	require.NoError(t, err)
	got, err := r.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, half, got)
}

func TestSwapUnits(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	swapUnits(b, 4)
	require.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, b)
	swapUnits(b, 1)
	require.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, b)
}

func TestSequenceSizeEscape(t *testing.T) {
	r := NewRegistry()
	for _, size := range []int{0, 1, shortSizeLimit - 1, shortSizeLimit, 70000} {
		item := Bytes(bytes.Repeat([]byte{'x'}, size))
		data, err := r.Marshal(Sequence{Type: List, Items: []Value{item, Int(5)}})
		require.NoError(t, err)

		// tag, subtype, item tag, then the size field
		sizeField := data[3:]
		if size < shortSizeLimit {
			require.Zero(t, sizeField[0]&1, "size %d", size)
		} else {
			require.Equal(t, byte(1), sizeField[0]&1, "size %d", size)
		}

		got, err := r.Unmarshal(data)
		require.NoError(t, err)
		seq := got.(Sequence)
		require.Len(t, seq.Items, 2)
		require.Equal(t, item, seq.Items[0])
		require.Equal(t, Int(5), seq.Items[1])
	}
}

func TestSequenceErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Unmarshal([]byte{'q', 'l', 'Z', 2, 0, 'x'})
	require.ErrorIs(t, err, ErrUnknownCodec)

	_, err = r.Unmarshal([]byte{'q', 'l', 'b', 20, 0, 'x'})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = r.Unmarshal([]byte{'q', 'x'})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = r.Marshal(Sequence{Type: List, Items: []Value{Ext{Codec: "Nope", Module: "nowhere"}}})
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"Array", "Text", "Bytes", "Int", "Float", "Complex", "Sequence"} {
		c, ok := r.Lookup(name, "")
		require.True(t, ok, name)
		require.Equal(t, name, c.Name())
		byTag, ok := r.LookupTag(c.Tag())
		require.True(t, ok)
		require.Equal(t, name, byTag.Name())
	}

	_, ok := r.Lookup(MsgpackName, MsgpackModule)
	require.False(t, ok)
	require.NoError(t, r.Register(Msgpack()))
	_, ok = r.Lookup(MsgpackName, MsgpackModule)
	require.True(t, ok)

	// duplicate tag and duplicate name/module are both refused
	require.ErrorIs(t, r.Register(Msgpack()), errConflict)
	dup := Func("Other", "mod", 'i', nil, nil)
	require.ErrorIs(t, r.Register(dup), errConflict)

	// same name in another module is fine
	upper := func(dst []byte, v any) ([]byte, error) {
		return append(dst, strings.ToUpper(v.(string))...), nil
	}
	lower := func(data []byte) (any, error) {
		return strings.ToLower(string(data)), nil
	}
	require.NoError(t, r.Register(Func("Text", "shouty", 'S', upper, lower)))

	c, payload, err := r.Encode(Ext{Codec: "Text", Module: "shouty", Value: "hi"})
	require.NoError(t, err)
	require.Equal(t, "shouty", c.Module())
	require.Equal(t, []byte("HI"), payload)
	v, err := r.Decode("Text", "shouty", payload)
	require.NoError(t, err)
	require.Equal(t, Ext{Codec: "Text", Module: "shouty", Value: "hi"}, v)

	_, err = r.Decode("Text", "missing", payload)
	require.ErrorIs(t, err, ErrUnknownCodec)
	_, err = r.Unmarshal([]byte{'?'})
	require.ErrorIs(t, err, ErrUnknownCodec)

	require.Error(t, r.Register(Func("bad,name", "", 'B', upper, lower)))
}

func TestOf(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want Value
	}{
		{"s", Text("s")},
		{[]byte("b"), Bytes("b")},
		{7, Int(7)},
		{uint8(7), Int(7)},
		{1.5, Float(1.5)},
		{complex(1, 1), Complex(complex(1, 1))},
		{[]string{"a", "b"}, Sequence{Type: List, Items: []Value{Text("a"), Text("b")}}},
		{[]any{1, "x"}, Sequence{Type: List, Items: []Value{Int(1), Text("x")}}},
		{Int(3), Int(3)},
	} {
		got, ok := Of(tc.in)
		require.True(t, ok, "%#v", tc.in)
		require.Equal(t, tc.want, got)
	}

	got, ok := Of([]float64{1, 2})
	require.True(t, ok)
	vals, err := ArrayValues[float64](got.(Array))
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, vals)

	_, ok = Of(struct{}{})
	require.False(t, ok)
	_, ok = Of([]any{struct{}{}})
	require.False(t, ok)
}

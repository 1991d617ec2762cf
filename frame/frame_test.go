// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/icf/codec"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func testLogger() (*slog.Logger, *safeBuffer) {
	var buf safeBuffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func newRegistry(t *testing.T) *codec.Registry {
	t.Helper()
	reg := codec.NewRegistry()
	require.NoError(t, reg.Register(codec.Msgpack()))
	return reg
}

func TestRoundTrip(t *testing.T) {
	reg := newRegistry(t)
	arr, err := codec.NewArray([]int{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	values := map[string]codec.Value{
		"array":   arr,
		"name":    codec.Text("run 42"),
		"blob":    codec.Bytes{1, 2, 3},
		"count":   codec.Int(-300),
		"energy":  codec.Float(13.6),
		"phase":   codec.Complex(complex(0, 1)),
		"tags":    codec.Sequence{Type: codec.Tuple, Items: []codec.Value{codec.Text("a"), codec.Int(1)}},
		"meta":    codec.NewMsgpack(map[string]any{"detector": "hess"}),
		"empty":   codec.Bytes{},
		"unicode": codec.Text("ключ"),
	}
	f := New(reg)
	for k, v := range values {
		f.Add(k, v)
	}
	data, err := f.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data, reg)
	require.NoError(t, err)
	require.Equal(t, f.Keys(), got.Keys())
	require.Equal(t, len(values), got.Len())
	for k, want := range values {
		s, ok := got.Get(k)
		require.True(t, ok, k)
		require.False(t, s.IsRaw(), k)
		assert.Equal(t, want, s.Value, k)
	}

	// the second Get serves the cached value
	s1, _ := got.Get("array")
	s2, _ := got.Get("array")
	assert.Equal(t, s1, s2)
	assert.Equal(t, "Array", s1.Codec)
	assert.Equal(t, "", s1.Module)

	meta, _ := got.Get("meta")
	assert.Equal(t, codec.MsgpackName, meta.Codec)
	assert.Equal(t, codec.MsgpackModule, meta.Module)
}

func TestWireFormat(t *testing.T) {
	reg := codec.NewRegistry()
	f := New(reg)
	f.Add("b", codec.Text("xy"))
	f.Add("a", codec.Bytes("z"))
	data, err := f.Serialize()
	require.NoError(t, err)

	dir := "a,Bytes,\nb,Text,\n"
	var want []byte
	want = append(want, "zxy"...)
	want = binary.LittleEndian.AppendUint32(want, 1)
	want = binary.LittleEndian.AppendUint32(want, 3)
	want = append(want, dir...)
	want = binary.LittleEndian.AppendUint32(want, uint32(len(dir)))
	want = binary.LittleEndian.AppendUint32(want, 2)
	want = binary.LittleEndian.AppendUint32(want, 11)
	require.Equal(t, want, data)
}

func TestEmptyFrame(t *testing.T) {
	reg := codec.NewRegistry()
	data, err := New(reg).Serialize()
	require.NoError(t, err)
	require.Len(t, data, footerSize)

	got, err := Deserialize(data, reg)
	require.NoError(t, err)
	require.Empty(t, got.Keys())
	_, ok := got.Get("missing")
	require.False(t, ok)
}

func TestUnknownCodecDegradesToRaw(t *testing.T) {
	full := newRegistry(t)
	f := New(full)
	f.Add("meta", codec.NewMsgpack([]any{"x", "y"}))
	f.Add("n", codec.Int(9))
	data, err := f.Serialize()
	require.NoError(t, err)

	logger, logs := testLogger()
	bare := codec.NewRegistry()
	got, err := Deserialize(data, bare, WithLogger(logger))
	require.NoError(t, err)
	require.Equal(t, []string{"meta", "n"}, got.Keys())
	require.Contains(t, logs.String(), "unknown codec")

	s, ok := got.Get("meta")
	require.True(t, ok)
	require.True(t, s.IsRaw())
	require.Equal(t, codec.MsgpackName, s.Codec)
	require.Equal(t, codec.MsgpackModule, s.Module)
	require.NotEmpty(t, s.Raw)

	n, _ := got.Get("n")
	require.Equal(t, codec.Int(9), n.Value)

	// raw slots are written back unchanged, so a registry that knows the
	// codec can still read them
	again, err := got.Serialize()
	require.NoError(t, err)
	require.Equal(t, data, again)
	back, err := Deserialize(again, full)
	require.NoError(t, err)
	meta, _ := back.Get("meta")
	require.False(t, meta.IsRaw())
	require.Equal(t, codec.NewMsgpack([]any{"x", "y"}), meta.Value)
}

func TestRawSlotIsACopy(t *testing.T) {
	f := New(newRegistry(t))
	f.Add("meta", codec.NewMsgpack(map[string]any{"a": 1}))
	data, err := f.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data, codec.NewRegistry())
	require.NoError(t, err)
	s, ok := got.Get("meta")
	require.True(t, ok)
	require.True(t, s.IsRaw())
	for i := range s.Raw {
		s.Raw[i] = 0xff
	}

	again, err := got.Serialize()
	require.NoError(t, err)
	require.Equal(t, data, again)
	s2, _ := got.Get("meta")
	require.NotEqual(t, s.Raw, s2.Raw)
}

func TestDecodeFailureDowngradesSlot(t *testing.T) {
	reg := codec.NewRegistry()
	f := New(reg)
	f.Add("x", codec.Float(1))
	data, err := f.Serialize()
	require.NoError(t, err)

	// point the directory at a codec whose decoder always fails
	failing := codec.NewRegistry()
	require.NoError(t, failing.Register(codec.Func("Float", "broken", 'F', nil, func([]byte) (any, error) {
		return nil, errors.New("boom")
	})))
	data = bytes.Replace(data, []byte("x,Float,\n"), []byte("x,Float,broken\n"), 1)
	data = growDirectory(data, len("broken"))

	logger, logs := testLogger()
	got, err := Deserialize(data, failing, WithLogger(logger))
	require.NoError(t, err)
	s, ok := got.Get("x")
	require.True(t, ok)
	require.True(t, s.IsRaw())
	require.Len(t, s.Raw, 8)
	require.Contains(t, logs.String(), "failed to decode")

	// stays raw without a second decode attempt
	before := strings.Count(logs.String(), "failed to decode")
	_, _ = got.Get("x")
	require.Equal(t, before, strings.Count(logs.String(), "failed to decode"))
}

// growDirectory patches the footer after the directory grew by delta bytes.
func growDirectory(data []byte, delta int) []byte {
	footer := data[len(data)-footerSize:]
	dirLen := binary.LittleEndian.Uint32(footer[0:4])
	binary.LittleEndian.PutUint32(footer[0:4], dirLen+uint32(delta))
	return data
}

func TestSerializeRejectsBadKeys(t *testing.T) {
	reg := codec.NewRegistry()
	for _, key := range []string{"a,b", "line\nbreak"} {
		f := New(reg)
		f.Add(key, codec.Int(1))
		_, err := f.Serialize()
		require.ErrorIs(t, err, ErrInvalidKey, key)
	}

	f := New(reg)
	f.Add("ext", codec.Ext{Codec: "Missing", Module: "nowhere", Value: 1})
	_, err := f.Serialize()
	require.ErrorIs(t, err, codec.ErrUnknownCodec)
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	reg := codec.NewRegistry()
	f := New(reg)
	f.Add("k", codec.Text("v"))
	good, err := f.Serialize()
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"short":       {1, 2, 3},
		"truncated":   good[1:],
		"zero footer": append(append([]byte(nil), good[:len(good)-footerSize]...), make([]byte, footerSize)...),
		"big count": func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(b[len(b)-8:], 1000)
			return b
		}(),
		"bad end offset": func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(b[1:], 99)
			return b
		}(),
		"missing comma": bytes.Replace(good, []byte("k,Text,"), []byte("k;Text;"), 1),
	} {
		_, err := Deserialize(data, reg)
		require.ErrorIs(t, err, ErrFormat, name)
	}
}

func TestDeserializeCopiesInput(t *testing.T) {
	reg := codec.NewRegistry()
	f := New(reg)
	f.Add("k", codec.Bytes("value"))
	data, err := f.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data, reg)
	require.NoError(t, err)
	for i := range data {
		data[i] = 0
	}
	s, _ := got.Get("k")
	require.Equal(t, codec.Bytes("value"), s.Value)
}

func TestAddAnyAndDelete(t *testing.T) {
	reg := codec.NewRegistry()
	f := New(reg)
	require.NoError(t, f.AddAny("i", 3))
	require.NoError(t, f.AddAny("s", "str"))
	require.Error(t, f.AddAny("bad", struct{}{}))
	require.True(t, f.Has("i"))

	s, ok := f.Get("i")
	require.True(t, ok)
	require.Equal(t, codec.Int(3), s.Value)
	require.Equal(t, "Int", s.Codec)

	f.Add("i", codec.Text("replaced"))
	s, _ = f.Get("i")
	require.Equal(t, codec.Text("replaced"), s.Value)

	f.Delete("i")
	require.False(t, f.Has("i"))
	require.Equal(t, []string{"s"}, f.Keys())
}

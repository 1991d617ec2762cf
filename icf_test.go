// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package icf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/icf/codec"
	"github.com/bpowers/icf/compress"
	"github.com/bpowers/icf/frame"
)

func TestFramesInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.icf")
	reg := codec.NewRegistry()
	require.NoError(t, reg.Register(codec.Msgpack()))

	f, err := Open(path, ModeAppend, WithBunchSize(256), WithHeaderExt([]byte(`{"schema":1}`)))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		fr := frame.New(reg)
		require.NoError(t, fr.AddAny("step", i))
		require.NoError(t, fr.AddAny("name", fmt.Sprintf("sample-%d", i)))
		arr, err := codec.NewArray([]int{2, 2}, []float64{float64(i), 1, 2, 3})
		require.NoError(t, err)
		fr.Add("weights", arr)
		fr.Add("meta", codec.NewMsgpack(map[string]any{"ok": true}))
		rec, err := fr.Serialize()
		require.NoError(t, err)
		require.NoError(t, f.Write(rec))
	}
	require.NoError(t, f.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, ProtocolICF, r.Protocol())
	assert.Equal(t, []byte(`{"schema":1}`), r.HeaderExt())
	require.Equal(t, int64(20), r.Len())
	assert.Greater(t, r.Bunches(), 1)

	rec, err := r.ReadAt(7)
	require.NoError(t, err)
	fr, err := frame.Deserialize(rec, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta", "name", "step", "weights"}, fr.Keys())

	step, ok := fr.Get("step")
	require.True(t, ok)
	assert.Equal(t, codec.Int(7), step.Value)
	weights, ok := fr.Get("weights")
	require.True(t, ok)
	vals, err := codec.ArrayValues[float64](weights.Value.(codec.Array))
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 1, 2, 3}, vals)

	// without the msgpack codec the value stays available as raw bytes
	plain, err := frame.Deserialize(rec, codec.NewRegistry())
	require.NoError(t, err)
	meta, ok := plain.Get("meta")
	require.True(t, ok)
	assert.True(t, meta.IsRaw())
	assert.Equal(t, codec.MsgpackName, meta.Codec)
}

func TestWriterOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.sof")
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	created := time.Unix(1600000000, 0)

	w, err := NewWriter(path,
		WithProtocol(ProtocolSOF),
		WithCompressor(compress.Zstd()),
		WithBunchSize(64),
		WithIdentifierExt([4]byte{'o', 'p', 't', 's'}),
		WithSync(true),
		WithClock(func() time.Time { return created }),
		WithLogger(logger),
	)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Write(bytes.Repeat([]byte{byte(i)}, 30)))
	}
	require.NoError(t, w.Close())
	assert.Contains(t, logs.String(), "flushed bunch")

	r, err := OpenReader(path, WithCacheSize(1), WithChecksumVerification(false))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, created, r.Timestamp())
	assert.Equal(t, [4]byte{'o', 'p', 't', 's'}, r.IdentifierExt())
	subs := r.SubFiles()
	require.Len(t, subs, 1)
	assert.Equal(t, compress.IDZstd, subs[0].Compressor)

	var n int
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(n)}, 30), rec)
		n++
	}
	assert.Equal(t, 10, n)
}

func TestLegacyWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.dat")
	w, err := NewWriter(path, WithProtocol(ProtocolLegacy), WithCustomHeader(42))
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("only")))
	require.NoError(t, w.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, ProtocolLegacy, r.Protocol())
	assert.Equal(t, uint64(42), r.CustomHeader())
	_, err = r.ReadAt(1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReExportedErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.icf"), ModeRead)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "ro.icf")
	f, err := Open(path, ModeTruncate)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	f, err = Open(path, ModeRead)
	require.NoError(t, err)
	defer f.Close()
	assert.ErrorIs(t, f.Write([]byte("x")), ErrReadOnly)
}

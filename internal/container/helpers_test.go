// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return string(s.buf)
}

func (s *safeBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *safeBuffer) ReadAt(p []byte, off int64) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n = copy(p, s.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

var (
	_ io.Writer   = &safeBuffer{}
	_ io.ReaderAt = &safeBuffer{}
)

// countingWriter records every Write call.
type countingWriter struct {
	safeBuffer
	writes      int
	shouldError bool
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.shouldError {
		return 0, errors.New("write failed")
	}
	c.writes++
	return c.safeBuffer.Write(p)
}

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}

func testConfig(p Protocol) Config {
	cfg := DefaultConfig()
	cfg.Protocol = p
	cfg.Now = fixedNow
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// logBuffer returns a logger writing text lines into the returned buffer.
func logBuffer() (*slog.Logger, *safeBuffer) {
	var buf safeBuffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// records returns n records of the given size, each filled with its own letter.
func records(n, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{byte('a' + i%26)}, size)
	}
	return out
}

func writeFile(t *testing.T, path string, cfg Config, recs [][]byte) {
	t.Helper()
	w, err := NewWriter(path, cfg)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
}

func writeICF(t *testing.T, path string, cfg Config, recs [][]byte) {
	t.Helper()
	f, err := Open(path, ModeTruncate, cfg)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, f.Write(rec))
	}
	require.NoError(t, f.Close())
}

func readAll(t *testing.T, path string, cfg Config) [][]byte {
	t.Helper()
	r, err := OpenReader(path, cfg)
	require.NoError(t, err)
	defer r.Close()
	var out [][]byte
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func concatFiles(t *testing.T, dst string, srcs ...string) {
	t.Helper()
	var all []byte
	for _, src := range srcs {
		b, err := os.ReadFile(src)
		require.NoError(t, err)
		all = append(all, b...)
	}
	require.NoError(t, os.WriteFile(dst, all, 0o644))
}

func appendBytes(t *testing.T, path string, b []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write(b)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// flipByte xors the byte at off in place.
func flipByte(t *testing.T, path string, off int64) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()
	var b [1]byte
	_, err = f.ReadAt(b[:], off)
	require.NoError(t, err)
	b[0] ^= 0xff
	_, err = f.WriteAt(b[:], off)
	require.NoError(t, err)
}

func sizeOf(t *testing.T, path string) int64 {
	t.Helper()
	st, err := os.Stat(path)
	require.NoError(t, err)
	return st.Size()
}

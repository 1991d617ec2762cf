// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package compress

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Bzip2 reads payloads written by bzip2-compressing producers.  The
// standard library only ships a decompressor, so new files can't use it.
type Bzip2 struct{}

func (Bzip2) ID() ID       { return IDBzip2 }
func (Bzip2) Name() string { return "bzip2" }

func (Bzip2) Compress(src []byte) ([]byte, error) {
	return nil, fmt.Errorf("bzip2: %w", ErrDecodeOnly)
}

func (Bzip2) Decompress(src []byte, limit int) ([]byte, error) {
	out, err := readLimited(bzip2.NewReader(bytes.NewReader(src)), limit)
	if err != nil {
		return nil, fmt.Errorf("bzip2: %w", err)
	}
	return out, nil
}

type zstdCompressor struct {
	once   sync.Once
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	encErr error
	decErr error
}

// Zstd returns a zstd compressor.  Encoders and decoders are created on
// first use and shared; EncodeAll and DecodeAll are safe for concurrent use.
func Zstd() Compressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) init() {
	z.once.Do(func() {
		// SpeedBestCompression is much slower and not much better
		z.enc, z.encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		z.dec, z.decErr = zstd.NewReader(nil, zstd.WithDecodeAllCapLimit(true))
	})
}

func (z *zstdCompressor) ID() ID       { return IDZstd }
func (z *zstdCompressor) Name() string { return "zstd" }

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	z.init()
	if z.encErr != nil {
		return nil, fmt.Errorf("zstd.NewWriter: %w", z.encErr)
	}
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *zstdCompressor) Decompress(src []byte, limit int) ([]byte, error) {
	z.init()
	if z.decErr != nil {
		return nil, fmt.Errorf("zstd.NewReader: %w", z.decErr)
	}
	// the decoder is built with a cap limit, so DecodeAll stops at cap(dst)
	out, err := z.dec.DecodeAll(src, make([]byte, 0, limit))
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		return nil, fmt.Errorf("zstd: %w", ErrTooLarge)
	}
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

const BrotliDefaultLevel = brotli.DefaultCompression

type brotliCompressor struct {
	level int
}

// Brotli returns a brotli compressor writing at the given quality level.
func Brotli(level int) Compressor {
	return brotliCompressor{level: level}
}

func (brotliCompressor) ID() ID       { return IDBrotli }
func (brotliCompressor) Name() string { return "brotli" }

func (b brotliCompressor) Compress(src []byte) ([]byte, error) {
	var dst bytes.Buffer
	w := brotli.NewWriterLevel(&dst, b.level)
	if _, err := w.Write(src); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("brotli: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	return dst.Bytes(), nil
}

func (brotliCompressor) Decompress(src []byte, limit int) ([]byte, error) {
	out, err := readLimited(brotli.NewReader(bytes.NewReader(src)), limit)
	if err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	return out, nil
}

// S2 is the snappy-compatible block format from klauspost/compress.  It
// trades ratio for speed.
type S2 struct{}

func (S2) ID() ID       { return IDS2 }
func (S2) Name() string { return "s2" }

func (S2) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (S2) Decompress(src []byte, limit int) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, fmt.Errorf("s2: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("s2: block of %d bytes: %w", n, ErrTooLarge)
	}
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("s2: %w", err)
	}
	return out, nil
}

const GzipDefaultLevel = gzip.DefaultCompression

type gzipCompressor struct {
	level int
}

func Gzip(level int) Compressor {
	return gzipCompressor{level: level}
}

func (gzipCompressor) ID() ID       { return IDGzip }
func (gzipCompressor) Name() string { return "gzip" }

func (g gzipCompressor) Compress(src []byte) ([]byte, error) {
	var dst bytes.Buffer
	w, err := gzip.NewWriterLevel(&dst, g.level)
	if err != nil {
		return nil, fmt.Errorf("gzip.NewWriterLevel: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return dst.Bytes(), nil
}

func (gzipCompressor) Decompress(src []byte, limit int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip.NewReader: %w", err)
	}
	defer r.Close()
	out, err := readLimited(r, limit)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, nil
}

// readLimited drains r, failing as soon as it yields more than limit bytes.
func readLimited(r io.Reader, limit int) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package compress provides the byte transforms applied to bunch payloads.
//
// Every compressor has a fixed 16-bit identifier that is recorded in the
// file header, so a reader can pick the right decompressor without any
// out-of-band configuration.  Identifier 0 means payloads are stored as-is.
package compress

import (
	"errors"
	"fmt"
	"strings"
)

// ID identifies a compressor on disk.
type ID uint16

const (
	IDNone   ID = 0
	IDBzip2  ID = 1
	IDZstd   ID = 2
	IDBrotli ID = 3
	IDS2     ID = 4
	IDGzip   ID = 5
)

var (
	// ErrUnknown is returned for identifiers or names with no registered compressor.
	ErrUnknown = errors.New("unknown compressor")
	// ErrDecodeOnly is returned by Compress on compressors that can only read.
	ErrDecodeOnly = errors.New("compressor can only decompress")
	// ErrTooLarge is returned by Decompress when the output would exceed
	// the caller's limit.
	ErrTooLarge = errors.New("decompressed data exceeds limit")
)

// Compressor is a pluggable whole-buffer byte transform.
//
// Decompress never produces more than limit bytes; a payload that would
// expand past it fails with ErrTooLarge before the excess is allocated.
type Compressor interface {
	ID() ID
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, limit int) ([]byte, error)
}

var builtins = []Compressor{
	None{},
	Bzip2{},
	Zstd(),
	Brotli(BrotliDefaultLevel),
	S2{},
	Gzip(GzipDefaultLevel),
}

// ByID returns the compressor recorded under id.  IDNone yields a
// pass-through compressor.
func ByID(id ID) (Compressor, error) {
	for _, c := range builtins {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("id %d: %w", id, ErrUnknown)
}

// ByName looks a compressor up by its case-insensitive name ("zstd",
// "brotli", "s2", "gzip", "bzip2", "bz2" or "none").
func ByName(name string) (Compressor, error) {
	name = strings.ToLower(name)
	if name == "bz2" {
		name = "bzip2"
	}
	if name == "" {
		name = "none"
	}
	for _, c := range builtins {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknown)
}

// None stores payloads unchanged.
type None struct{}

func (None) ID() ID       { return IDNone }
func (None) Name() string { return "none" }

func (None) Compress(src []byte) ([]byte, error) {
	return src, nil
}

func (None) Decompress(src []byte, limit int) ([]byte, error) {
	if len(src) > limit {
		return nil, fmt.Errorf("none: %d bytes: %w", len(src), ErrTooLarge)
	}
	return src, nil
}

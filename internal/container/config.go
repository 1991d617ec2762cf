// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"io"
	"log/slog"
	"time"

	"github.com/bpowers/icf/compress"
)

const (
	DefaultBunchSize = 1000000
	DefaultCacheSize = 10
)

// Config carries the settings shared by writers and readers.  The zero
// value is usable: Defaults fills in anything left unset.
type Config struct {
	Logger *slog.Logger
	// Protocol selects the layout NewWriter produces.
	Protocol Protocol
	// BunchSize is the number of buffered bytes that triggers a flush
	// once exceeded.
	BunchSize  int
	Compressor compress.Compressor
	HeaderExt  []byte
	IdentExt   [4]byte
	// CustomHeader is stored in the header of legacy files.
	CustomHeader uint64
	// Sync makes every flush wait for the data to reach stable storage.
	Sync bool
	// CacheSize is the number of decompressed bunches a reader keeps.
	CacheSize       int
	VerifyChecksums bool
	// Now is the clock used for header and trailer timestamps.
	Now func() time.Time
}

// DefaultConfig returns the settings used when no options are given.
func DefaultConfig() Config {
	return Config{
		Protocol:        ProtocolSOF,
		BunchSize:       DefaultBunchSize,
		CacheSize:       DefaultCacheSize,
		VerifyChecksums: true,
	}
}

// Defaults fills in unset fields.
func (c *Config) Defaults() {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.BunchSize <= 0 {
		c.BunchSize = DefaultBunchSize
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Compressor == nil {
		c.Compressor = compress.None{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *Config) timestamp() uint64 {
	return uint64(c.Now().Unix())
}

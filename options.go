// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package icf

import (
	"log/slog"
	"time"

	"github.com/bpowers/icf/compress"
	"github.com/bpowers/icf/internal/container"
)

// Option configures a Writer, Reader or File.  Options that only matter
// when writing are ignored by readers.
type Option func(*container.Config)

// WithLogger sets an optional logger for progress and recovery messages.
// If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *container.Config) {
		cfg.Logger = logger
	}
}

// WithProtocol selects the layout NewWriter produces.  The default is
// ProtocolSOF.
func WithProtocol(p Protocol) Option {
	return func(cfg *container.Config) {
		cfg.Protocol = p
	}
}

// WithBunchSize sets how many bytes of records are buffered before a
// bunch is written.
func WithBunchSize(n int) Option {
	return func(cfg *container.Config) {
		cfg.BunchSize = n
	}
}

// WithCompressor compresses SOF bunches with c.
func WithCompressor(c compress.Compressor) Option {
	return func(cfg *container.Config) {
		cfg.Compressor = c
	}
}

// WithHeaderExt stores ext after the file header.  It may be at most
// 65535 bytes long.
func WithHeaderExt(ext []byte) Option {
	return func(cfg *container.Config) {
		cfg.HeaderExt = append([]byte(nil), ext...)
	}
}

func WithIdentifierExt(ident [4]byte) Option {
	return func(cfg *container.Config) {
		cfg.IdentExt = ident
	}
}

// WithCustomHeader sets the 8-byte custom field of legacy headers.
func WithCustomHeader(v uint64) Option {
	return func(cfg *container.Config) {
		cfg.CustomHeader = v
	}
}

// WithSync makes every flush wait until the data reaches stable storage.
func WithSync(sync bool) Option {
	return func(cfg *container.Config) {
		cfg.Sync = sync
	}
}

// WithCacheSize sets how many decompressed bunches a reader keeps.
func WithCacheSize(n int) Option {
	return func(cfg *container.Config) {
		cfg.CacheSize = n
	}
}

// WithChecksumVerification controls whether readers check the checksum
// of uncompressed bunches before serving records from them.  Compressed
// bunches and legacy records are always checked.
func WithChecksumVerification(verify bool) Option {
	return func(cfg *container.Config) {
		cfg.VerifyChecksums = verify
	}
}

// WithClock overrides the time source used for header and bunch
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *container.Config) {
		cfg.Now = now
	}
}

func buildConfig(opts []Option) container.Config {
	cfg := container.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Defaults()
	return cfg
}

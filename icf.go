// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package icf stores sequences of opaque byte records in append-only,
// indexed container files.
//
// NewWriter creates legacy or SOF files, OpenReader reads any protocol,
// and Open returns a File that can keep appending to an ICF container
// across process restarts.  Pair it with the frame package to store
// structured values in each record.
package icf

import (
	"github.com/bpowers/icf/internal/container"
)

type (
	// Writer creates a new legacy or SOF container.
	Writer = container.Writer
	// Reader reads legacy, SOF and ICF containers.
	Reader = container.Reader
	// File is an appendable ICF container.
	File = container.File
	// SubFile describes one of the files a container was concatenated from.
	SubFile  = container.SubFile
	Protocol = container.Protocol
	Mode     = container.Mode
	// CorruptionError reports on-disk data that failed validation.
	CorruptionError = container.CorruptionError
)

const (
	ProtocolLegacy = container.ProtocolLegacy
	ProtocolSOF    = container.ProtocolSOF
	ProtocolICF    = container.ProtocolICF

	ModeRead     = container.ModeRead
	ModeAppend   = container.ModeAppend
	ModeTruncate = container.ModeTruncate

	DefaultBunchSize = container.DefaultBunchSize
	DefaultCacheSize = container.DefaultCacheSize
)

var (
	ErrFormat           = container.ErrFormat
	ErrProtocolMismatch = container.ErrProtocolMismatch
	ErrOutOfRange       = container.ErrOutOfRange
	ErrCorruption       = container.ErrCorruption
	ErrReadOnly         = container.ErrReadOnly
	ErrClosed           = container.ErrClosed
	ErrLocked           = container.ErrLocked
	ErrTooLarge         = container.ErrTooLarge
)

// NewWriter creates (or truncates) the container at path.  It holds an
// exclusive lock on the file until Close.
func NewWriter(path string, opts ...Option) (*Writer, error) {
	return container.NewWriter(path, buildConfig(opts))
}

// OpenReader opens the container at path for reading, whatever its
// protocol.  Readers never lock and may follow a file that is still
// being written; see Reader.Reload.
func OpenReader(path string, opts ...Option) (*Reader, error) {
	return container.OpenReader(path, buildConfig(opts))
}

// Open opens the ICF container at path.  ModeAppend and ModeTruncate
// create the file if needed and lock it for writing.
func Open(path string, mode Mode, opts ...Option) (*File, error) {
	return container.Open(path, mode, buildConfig(opts))
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"sync/atomic"

	"github.com/bpowers/icf/internal/fsys"
)

const legacyChunkHeaderSize = 4 + 4 // length + crc32

// Writer creates a new legacy or SOF container.  A Writer is not safe
// for concurrent use.
type Writer struct {
	f        *os.File
	cfg      Config
	bw       *bunchWriter // nil for legacy files
	off      int64        // legacy: end of the last chunk
	count    int64
	finished atomic.Bool
}

// createLocked opens path for writing, takes the writer lock and only
// then truncates, so a file in use by another writer is left intact.
func createLocked(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	if err := fsys.Lock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Truncate: %w", err)
	}
	return f, nil
}

// NewWriter creates (or truncates) path and writes a header for
// cfg.Protocol, which must be ProtocolLegacy or ProtocolSOF.
func NewWriter(path string, cfg Config) (*Writer, error) {
	cfg.Defaults()
	h := &fileHeader{
		protocol:   cfg.Protocol,
		identExt:   cfg.IdentExt,
		version:    uint32(cfg.Protocol),
		timestamp:  cfg.timestamp(),
		compressor: cfg.Compressor.ID(),
		ext:        cfg.HeaderExt,
		custom:     cfg.CustomHeader,
	}
	switch cfg.Protocol {
	case ProtocolLegacy:
		if cfg.Compressor.ID() != 0 {
			return nil, fmt.Errorf("legacy files can't be compressed: %w", ErrProtocolMismatch)
		}
	case ProtocolSOF:
	default:
		return nil, fmt.Errorf("NewWriter(%s): %w", cfg.Protocol, ErrProtocolMismatch)
	}
	// surface bad headers before touching the file
	if _, err := h.MarshalBinary(); err != nil {
		return nil, err
	}

	f, err := createLocked(path)
	if err != nil {
		return nil, err
	}
	headerLen, err := h.WriteTo(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fileHeader.WriteTo: %w", err)
	}

	w := &Writer{f: f, cfg: cfg, off: headerLen}
	if cfg.Protocol == ProtocolSOF {
		w.bw = &bunchWriter{
			w:           f,
			lay:         sofLayout{},
			comp:        cfg.Compressor,
			bunchSize:   cfg.BunchSize,
			now:         cfg.timestamp,
			logger:      cfg.Logger,
			off:         headerLen,
			lastTrailer: -1,
		}
		if cfg.Sync {
			w.bw.sync = w.sync
		}
	}
	cfg.Logger.Debug("created container", "path", path, "protocol", cfg.Protocol.String(),
		"compressor", cfg.Compressor.Name())
	return w, nil
}

func (w *Writer) sync() error {
	return fsys.Datasync(w.f)
}

// Write adds one record.  Legacy files get the record on disk
// immediately; SOF files buffer it until the bunch fills up.
func (w *Writer) Write(rec []byte) error {
	if w.finished.Load() {
		return ErrClosed
	}
	if w.bw != nil {
		b, err := w.bw.add(rec)
		if err == nil || b != nil {
			// rec reached the file even if the sync that followed failed
			w.count++
		}
		return err
	}

	if uint64(len(rec)) > math.MaxUint32 {
		return fmt.Errorf("record of %d bytes: %w", len(rec), ErrTooLarge)
	}
	buf := make([]byte, legacyChunkHeaderSize, legacyChunkHeaderSize+len(rec))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(rec)))
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(rec))
	buf = append(buf, rec...)
	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	w.off += int64(len(buf))
	w.count++
	if w.cfg.Sync {
		return w.sync()
	}
	return nil
}

// Flush writes any buffered records as a bunch.
func (w *Writer) Flush() error {
	if w.finished.Load() {
		return ErrClosed
	}
	if w.bw == nil {
		return nil
	}
	_, err := w.bw.flush()
	return err
}

// Len is the number of records written, including buffered ones.
func (w *Writer) Len() int64 {
	return w.count
}

// Close flushes buffered records and releases the file.  Calling Close
// more than once is a no-op.
func (w *Writer) Close() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return nil
	}
	var flushErr error
	if w.bw != nil {
		_, flushErr = w.bw.flush()
	}
	closeErr := w.f.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("f.Close: %w", closeErr)
	}
	return nil
}

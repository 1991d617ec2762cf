// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/bpowers/icf/compress"
	"github.com/bpowers/icf/internal/fsys"
)

// Mode selects how Open treats an existing file.
type Mode int

const (
	// ModeRead opens an existing file read-only.
	ModeRead Mode = iota
	// ModeAppend continues the last sub-file of an existing file, or
	// creates a new one.
	ModeAppend
	// ModeTruncate discards any existing contents.
	ModeTruncate
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeAppend:
		return "append"
	case ModeTruncate:
		return "truncate"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// File is an ICF container that can be read and appended to through
// one handle.  Records still buffered for the next bunch are readable
// too.  A File is not safe for concurrent use.
type File struct {
	f      *os.File
	mode   Mode
	cfg    Config
	ix     *bunchIndex
	bw     *bunchWriter // nil in ModeRead
	cursor int64
	closed atomic.Bool
}

// Open opens an ICF container.  Writers hold an exclusive lock on the
// file until Close; a second writer gets ErrLocked.
func Open(path string, mode Mode, cfg Config) (*File, error) {
	cfg.Defaults()
	if cfg.Compressor.ID() != compress.IDNone {
		return nil, fmt.Errorf("icf files are never compressed: %w", ErrProtocolMismatch)
	}
	if _, err := (&fileHeader{protocol: ProtocolICF, ext: cfg.HeaderExt}).MarshalBinary(); err != nil {
		return nil, err
	}

	var f *os.File
	var err error
	switch mode {
	case ModeRead:
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("os.Open(%s): %w", path, err)
		}
	case ModeAppend:
		f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
		}
		if err := fsys.Lock(f); err != nil {
			_ = f.Close()
			return nil, err
		}
	case ModeTruncate:
		if f, err = createLocked(path); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mode %d", int(mode))
	}

	file := &File{
		f:    f,
		mode: mode,
		cfg:  cfg,
		ix:   newBunchIndex(f, icfLayout{}, &cfg),
	}
	if err := file.init(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func (f *File) init() error {
	size, err := fileSize(f.f)
	if err != nil {
		return err
	}
	if size == 0 && f.mode != ModeRead {
		return f.startSubFile()
	}

	var prefix [detectSize]byte
	n, err := f.f.ReadAt(prefix[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("ReadAt(header): %w", err)
	}
	p, err := detectProtocol(prefix[:n])
	if err != nil {
		return err
	}
	if p != ProtocolICF {
		return fmt.Errorf("%s file opened as icf: %w", p, ErrProtocolMismatch)
	}
	if _, err := readHeader(f.f, p, 0, size); err != nil {
		return err
	}
	if err := f.ix.build(size); err != nil {
		return err
	}
	if f.mode == ModeRead {
		return nil
	}

	if f.ix.end < size {
		f.cfg.Logger.Warn("truncating incomplete bunch before appending",
			"valid_end", f.ix.end, "ignored_bytes", size-f.ix.end)
		if err := f.f.Truncate(f.ix.end); err != nil {
			return fmt.Errorf("f.Truncate: %w", err)
		}
	}
	last := f.ix.subs[len(f.ix.subs)-1]
	f.newBunchWriter(last)
	if n := len(last.bunches); n > 0 {
		f.bw.lastTrailer = last.bunches[n-1].trailerPos
		f.bw.number = last.bunches[n-1].number + 1
	}
	if _, err := f.f.Seek(f.bw.off, io.SeekStart); err != nil {
		return fmt.Errorf("f.Seek: %w", err)
	}
	return nil
}

// startSubFile writes a header at the start of an empty file.
func (f *File) startSubFile() error {
	h := &fileHeader{
		protocol:  ProtocolICF,
		identExt:  f.cfg.IdentExt,
		timestamp: f.cfg.timestamp(),
		ext:       f.cfg.HeaderExt,
	}
	if _, err := h.WriteTo(f.f); err != nil {
		return fmt.Errorf("fileHeader.WriteTo: %w", err)
	}
	sf := &subFile{start: 0, header: h, comp: compress.None{}}
	f.ix.addSubFile(sf)
	f.newBunchWriter(sf)
	return nil
}

func (f *File) newBunchWriter(sf *subFile) {
	f.bw = &bunchWriter{
		w:           f.f,
		lay:         icfLayout{},
		comp:        compress.None{},
		bunchSize:   f.cfg.BunchSize,
		now:         f.cfg.timestamp,
		logger:      f.cfg.Logger,
		subStart:    sf.start,
		off:         sf.end(),
		lastTrailer: -1,
	}
	if f.cfg.Sync {
		f.bw.sync = func() error { return fsys.Datasync(f.f) }
	}
}

func (f *File) lastSubFile() *subFile {
	return f.ix.subs[len(f.ix.subs)-1]
}

// Write adds one record, flushing a bunch once enough bytes are buffered.
func (f *File) Write(rec []byte) error {
	if f.closed.Load() {
		return ErrClosed
	}
	if f.bw == nil {
		return ErrReadOnly
	}
	b, err := f.bw.add(rec)
	f.indexFlushed(b)
	return err
}

func (f *File) indexFlushed(b *bunchInfo) {
	if b == nil {
		return
	}
	sf := f.lastSubFile()
	sf.bunches = append(sf.bunches, b)
	f.ix.addBunch(sf, b)
}

// Flush writes buffered records as a bunch.
func (f *File) Flush() error {
	if f.closed.Load() {
		return ErrClosed
	}
	if f.bw == nil {
		return nil
	}
	b, err := f.bw.flush()
	f.indexFlushed(b)
	return err
}

// Size is the number of records, counting ones not yet flushed.
func (f *File) Size() int64 {
	n := f.ix.n
	if f.bw != nil {
		n += int64(len(f.bw.pending))
	}
	return n
}

// ReadAt returns a copy of record i, which may still be buffered.
func (f *File) ReadAt(i int64) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if f.bw != nil && i >= f.ix.n && i < f.Size() {
		return append([]byte(nil), f.bw.pending[i-f.ix.n]...), nil
	}
	if i >= f.ix.n {
		return nil, fmt.Errorf("record %d of %d: %w", i, f.Size(), ErrOutOfRange)
	}
	return f.ix.readAt(i)
}

// Read returns the record at the cursor and advances it, or io.EOF at
// the end.
func (f *File) Read() ([]byte, error) {
	if f.cursor >= f.Size() {
		return nil, io.EOF
	}
	rec, err := f.ReadAt(f.cursor)
	if err != nil {
		return nil, err
	}
	f.cursor++
	return rec, nil
}

func (f *File) ResetFP() {
	f.cursor = 0
}

// Reload re-scans the file.  In ModeRead this picks up bunches written
// by another process since Open.
func (f *File) Reload() error {
	if f.closed.Load() {
		return ErrClosed
	}
	size := int64(0)
	if f.bw != nil {
		size = f.bw.off
	} else {
		var err error
		if size, err = fileSize(f.f); err != nil {
			return err
		}
	}
	return f.ix.build(size)
}

// Timestamp is the creation time of the first sub-file.
func (f *File) Timestamp() time.Time {
	return f.ix.subs[0].header.time()
}

func (f *File) HeaderExt() []byte {
	return append([]byte(nil), f.ix.subs[0].header.ext...)
}

func (f *File) IdentifierExt() [4]byte {
	return f.ix.subs[0].header.identExt
}

func (f *File) SubFiles() []SubFile {
	return describeSubFiles(f.ix.subs)
}

// Bunches is the number of flushed bunches.
func (f *File) Bunches() int {
	return len(f.ix.bunches)
}

func (f *File) Mode() Mode {
	return f.mode
}

// Close flushes buffered records, releases the lock and closes the
// file.  Calling Close more than once is a no-op.
func (f *File) Close() error {
	if alreadyClosed := f.closed.Swap(true); alreadyClosed {
		return nil
	}
	var flushErr error
	if f.bw != nil {
		var b *bunchInfo
		b, flushErr = f.bw.flush()
		f.indexFlushed(b)
	}
	closeErr := f.f.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("f.Close: %w", closeErr)
	}
	return nil
}

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
)

// SubFile describes one independently written container inside a
// possibly concatenated file.
type SubFile struct {
	Offset     int64
	Protocol   Protocol
	Timestamp  time.Time
	Compressor compress.ID
	IdentExt   [4]byte
	HeaderExt  []byte
	Bunches    int
	Records    int64
}

func describeSubFiles(subs []*subFile) []SubFile {
	out := make([]SubFile, 0, len(subs))
	for _, sf := range subs {
		out = append(out, SubFile{
			Offset:     sf.start,
			Protocol:   sf.header.protocol,
			Timestamp:  sf.header.time(),
			Compressor: sf.header.compressor,
			IdentExt:   sf.header.identExt,
			HeaderExt:  append([]byte(nil), sf.header.ext...),
			Bunches:    len(sf.bunches),
			Records:    sf.records(),
		})
	}
	return out
}

// Reader reads any container: legacy, SOF or ICF.  Readers never lock
// the file and may run alongside a single writer; Reload picks up
// bunches completed since the last scan.  A Reader is not safe for
// concurrent use.
type Reader struct {
	f        *os.File
	cfg      Config
	protocol Protocol
	header   *fileHeader // header of the first sub-file
	bunched  *bunchIndex // nil for legacy files
	legacy   *legacyIndex
	cursor   int64
	closed   atomic.Bool
}

// OpenReader opens path and builds its record index.
func OpenReader(path string, cfg Config) (*Reader, error) {
	cfg.Defaults()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	r := &Reader{f: f, cfg: cfg}
	if err := r.init(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) init() error {
	size, err := fileSize(r.f)
	if err != nil {
		return err
	}
	var prefix [detectSize]byte
	n, err := r.f.ReadAt(prefix[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("ReadAt(header): %w", err)
	}
	p, err := detectProtocol(prefix[:n])
	if err != nil {
		return err
	}
	r.protocol = p
	if r.header, err = readHeader(r.f, p, 0, size); err != nil {
		return err
	}

	if p == ProtocolLegacy {
		r.legacy = newLegacyIndex(r.f)
		return r.legacy.scan(size)
	}
	lay, err := layoutFor(p)
	if err != nil {
		return err
	}
	r.bunched = newBunchIndex(r.f, lay, &r.cfg)
	return r.bunched.build(size)
}

func fileSize(f *os.File) (int64, error) {
	stats, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("f.Stat: %w", err)
	}
	return stats.Size(), nil
}

// Len is the number of indexed records.
func (r *Reader) Len() int64 {
	if r.legacy != nil {
		return r.legacy.len()
	}
	return r.bunched.n
}

// ReadAt returns a copy of record i.
func (r *Reader) ReadAt(i int64) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if r.legacy != nil {
		return r.legacy.readAt(i)
	}
	return r.bunched.readAt(i)
}

// Read returns the record at the cursor and advances it, or io.EOF
// once every indexed record has been read.
func (r *Reader) Read() ([]byte, error) {
	if r.cursor >= r.Len() {
		return nil, io.EOF
	}
	rec, err := r.ReadAt(r.cursor)
	if err != nil {
		return nil, err
	}
	r.cursor++
	return rec, nil
}

// ResetFP moves the Read cursor back to the first record.
func (r *Reader) ResetFP() {
	r.cursor = 0
}

// Reload re-scans the file to pick up records appended since it was
// opened.  The Read cursor is kept.
func (r *Reader) Reload() error {
	if r.closed.Load() {
		return ErrClosed
	}
	size, err := fileSize(r.f)
	if err != nil {
		return err
	}
	if r.legacy != nil {
		return r.legacy.scan(size)
	}
	return r.bunched.build(size)
}

// Verify checks the checksum of every record or bunch that has one.
func (r *Reader) Verify() error {
	if r.legacy != nil {
		for i := int64(0); i < r.legacy.len(); i++ {
			if _, err := r.legacy.readAt(i); err != nil {
				return err
			}
		}
		return nil
	}
	return r.bunched.verifyAll()
}

func (r *Reader) Protocol() Protocol {
	return r.protocol
}

// Timestamp is the creation time recorded in the first header.  Legacy
// files have none and report the zero time.
func (r *Reader) Timestamp() time.Time {
	if r.protocol == ProtocolLegacy {
		return time.Time{}
	}
	return r.header.time()
}

func (r *Reader) HeaderExt() []byte {
	return append([]byte(nil), r.header.ext...)
}

func (r *Reader) IdentifierExt() [4]byte {
	return r.header.identExt
}

// CustomHeader is the 8-byte field of legacy headers.
func (r *Reader) CustomHeader() uint64 {
	return r.header.custom
}

// SubFiles lists the sub-files of a bunched container.  A legacy file
// reports a single sub-file.
func (r *Reader) SubFiles() []SubFile {
	if r.legacy != nil {
		return []SubFile{{
			Protocol: ProtocolLegacy,
			Records:  r.legacy.len(),
		}}
	}
	return describeSubFiles(r.bunched.subs)
}

// Bunches is the number of indexed bunches; legacy files have none.
func (r *Reader) Bunches() int {
	if r.legacy != nil {
		return 0
	}
	return len(r.bunched.bunches)
}

// FileSize is the current size of the file on disk, which may include
// an incomplete bunch past ValidSize.
func (r *Reader) FileSize() (int64, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	return fileSize(r.f)
}

// ValidSize is the length of the file prefix covered by the index.
func (r *Reader) ValidSize() int64 {
	if r.legacy != nil {
		return r.legacy.next
	}
	return r.bunched.end
}

func (r *Reader) Close() error {
	if alreadyClosed := r.closed.Swap(true); alreadyClosed {
		return nil
	}
	return r.f.Close()
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"math"

	"github.com/bpowers/icf/compress"
	"github.com/bpowers/icf/internal/zero"
)

// bunchWriter buffers records and appends them to w as bunches in a
// SOF or ICF layout.  It tracks enough of the last sub-file's trailer
// chain to continue it.
type bunchWriter struct {
	w         io.Writer
	lay       layout
	comp      compress.Compressor
	bunchSize int
	now       func() uint64
	sync      func() error
	logger    *slog.Logger

	subStart    int64
	off         int64 // where the next bunch starts
	lastTrailer int64 // -1 until the sub-file has a bunch
	number      uint32

	pending      [][]byte
	pendingBytes int
	scratch      []byte

	// err is sticky: after a failed write the file position is unknown,
	// and after a failed sync the durability of what follows is.
	err error
}

// add buffers a copy of rec, flushing once the buffer exceeds the bunch
// size.  The flushed bunch is returned, or nil if nothing was written.
// A bunch that was written but not synced is returned along with the
// error.
func (bw *bunchWriter) add(rec []byte) (*bunchInfo, error) {
	if bw.err != nil {
		return nil, bw.err
	}
	if uint64(len(rec)) > math.MaxUint32 {
		return nil, fmt.Errorf("record of %d bytes: %w", len(rec), ErrTooLarge)
	}
	bw.pending = append(bw.pending, append([]byte(nil), rec...))
	bw.pendingBytes += len(rec)
	if bw.pendingBytes > bw.bunchSize {
		return bw.flush()
	}
	return nil, nil
}

// flush writes the buffered records as one bunch with a single Write,
// so concurrent readers never index a partial bunch.
func (bw *bunchWriter) flush() (*bunchInfo, error) {
	if bw.err != nil {
		return nil, bw.err
	}
	if len(bw.pending) == 0 {
		return nil, nil
	}

	raw := bw.scratch[:0]
	sizes := make([]uint32, len(bw.pending))
	for i, rec := range bw.pending {
		raw = append(raw, rec...)
		sizes[i] = uint32(len(rec))
	}
	bw.scratch = raw

	stored, err := bw.comp.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s.Compress: %w", bw.comp.Name(), err)
	}

	trailerPos := bw.off + bw.lay.trailerOffset(int64(len(stored)), len(sizes))
	b := &bunchInfo{
		trailerPos: trailerPos,
		dataStart:  bw.off,
		stored:     int64(len(stored)),
		fileOffset: uint64(trailerPos - bw.subStart),
		number:     bw.number & bw.lay.numberMask(),
		crc:        crc32.ChecksumIEEE(stored),
		timestamp:  bw.now(),
		count:      int64(len(sizes)),
		sizes:      sizes,
	}
	if bw.lastTrailer >= 0 {
		b.backOffset = uint64(trailerPos - bw.lastTrailer)
	}

	buf, err := bw.lay.appendBunch(nil, b, stored)
	if err != nil {
		return nil, err
	}
	if _, err := bw.w.Write(buf); err != nil {
		bw.err = fmt.Errorf("write bunch %d: %w", b.number, err)
		return nil, bw.err
	}
	b.end = bw.off + int64(len(buf))

	// the bunch is on disk now, so the chain moves past it whether or not
	// the sync succeeds
	bw.off = b.end
	bw.lastTrailer = trailerPos
	bw.number++
	zero.ByteSlices(bw.pending)
	bw.pending = bw.pending[:0]
	bw.pendingBytes = 0

	bw.logger.Debug("flushed bunch", "number", b.number, "records", len(sizes),
		"raw_bytes", len(raw), "stored_bytes", len(stored), "offset", b.dataStart)

	if bw.sync != nil {
		if err := bw.sync(); err != nil {
			bw.err = fmt.Errorf("sync bunch %d: %w", b.number, err)
			return b, bw.err
		}
	}
	return b, nil
}

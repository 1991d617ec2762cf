// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bpowers/icf/compress"
)

const (
	// a header-only sub-file is at most this long
	maxHeaderLen = fileHeaderSize + maxExtLen

	initialRecoveryWindow = 1 << 20
	maxRecoveryWindow     = 256 << 20
)

// subFile is one independently written container inside a (possibly
// concatenated) file.
type subFile struct {
	start   int64
	header  *fileHeader
	bunches []*bunchInfo // in write order
	comp    compress.Compressor
}

func (sf *subFile) dataStart() int64 {
	return sf.start + sf.header.size()
}

func (sf *subFile) end() int64 {
	if len(sf.bunches) == 0 {
		return sf.dataStart()
	}
	return sf.bunches[len(sf.bunches)-1].end
}

func (sf *subFile) records() int64 {
	var n int64
	for _, b := range sf.bunches {
		n += b.count
	}
	return n
}

// scanner rebuilds the list of sub-files by walking trailers backward
// from the end of the file.
type scanner struct {
	r      io.ReaderAt
	lay    layout
	logger *slog.Logger
}

// scanResult is everything a backward scan learns about a file.
type scanResult struct {
	subs []*subFile
	// end is where valid data stops; bytes past it are an incomplete
	// bunch from an interrupted or in-progress write.
	end int64
}

func (s *scanner) scan(size int64) (*scanResult, error) {
	res := &scanResult{end: size}
	end := size
	for end > 0 {
		sf, err := s.subFileEndingAt(s.r, end)
		if err != nil {
			if end != size {
				// only the tail of the file may be incomplete
				return nil, fmt.Errorf("sub-file ending at %d: %w", end, err)
			}
			recovered, rerr := s.recoverTail(size)
			if rerr != nil {
				return nil, fmt.Errorf("no complete bunch found before %d: %w", size, err)
			}
			sf = recovered
			res.end = sf.end()
			s.logger.Warn("ignoring incomplete data at end of container",
				"valid_end", res.end, "ignored_bytes", size-res.end)
		}
		res.subs = append(res.subs, sf)
		end = sf.start
	}
	// sub-files were found last to first
	for i, j := 0, len(res.subs)-1; i < j; i, j = i+1, j-1 {
		res.subs[i], res.subs[j] = res.subs[j], res.subs[i]
	}
	s.logger.Debug("scanned container", "protocol", s.lay.protocol().String(),
		"sub_files", len(res.subs), "valid_end", res.end)
	return res, nil
}

// subFileEndingAt finds the sub-file whose last bunch, or whose header
// if it has no bunches, ends exactly at end.
func (s *scanner) subFileEndingAt(r io.ReaderAt, end int64) (*subFile, error) {
	sf, err := s.chainEndingAt(r, end)
	if err == nil {
		return sf, nil
	}
	if hdr, herr := s.headerOnlyEndingAt(r, end); herr == nil {
		return hdr, nil
	}
	return nil, err
}

func (s *scanner) chainEndingAt(r io.ReaderAt, end int64) (*subFile, error) {
	pos, err := s.lay.trailerBefore(r, end)
	if err != nil {
		return nil, err
	}
	last, err := s.lay.bunchAt(r, pos, end)
	if err != nil {
		return nil, err
	}
	if last.end != end {
		return nil, corruptf(pos, "bunch ends at %d, expected %d", last.end, end)
	}
	if last.fileOffset > uint64(last.trailerPos) {
		return nil, corruptf(pos, "file offset %d points before the file", last.fileOffset)
	}
	start := last.trailerPos - int64(last.fileOffset)
	header, err := readHeader(r, s.lay.protocol(), start, last.dataStart)
	if err != nil {
		return nil, corruptf(start, "sub-file header: %v", err)
	}
	sf := &subFile{start: start, header: header}
	mask := s.lay.numberMask()

	chain := []*bunchInfo{last}
	cur := last
	for cur.backOffset != 0 {
		if cur.backOffset > uint64(cur.trailerPos-start) {
			return nil, corruptf(cur.trailerPos, "back offset %d leaves the sub-file at %d", cur.backOffset, start)
		}
		prev, err := s.lay.bunchAt(r, cur.trailerPos-int64(cur.backOffset), cur.dataStart)
		if err != nil {
			return nil, err
		}
		switch {
		case prev.end != cur.dataStart:
			return nil, corruptf(prev.trailerPos, "bunch ends at %d but the next starts at %d", prev.end, cur.dataStart)
		case prev.fileOffset != uint64(prev.trailerPos-start):
			return nil, corruptf(prev.trailerPos, "file offset %d, expected %d", prev.fileOffset, prev.trailerPos-start)
		case prev.number != (cur.number-1)&mask:
			return nil, corruptf(prev.trailerPos, "bunch number %d precedes %d", prev.number, cur.number)
		}
		chain = append(chain, prev)
		cur = prev
	}
	if cur.number != 0 {
		return nil, corruptf(cur.trailerPos, "first bunch is numbered %d", cur.number)
	}
	if cur.dataStart != sf.dataStart() {
		return nil, corruptf(cur.dataStart, "first bunch doesn't follow the header ending at %d", sf.dataStart())
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := s.lay.loadSizes(r, chain[i]); err != nil {
			return nil, err
		}
		sf.bunches = append(sf.bunches, chain[i])
	}
	if err := s.attachCompressor(sf); err != nil {
		return nil, err
	}
	return sf, nil
}

func (s *scanner) attachCompressor(sf *subFile) error {
	c, err := compress.ByID(sf.header.compressor)
	if err != nil {
		return fmt.Errorf("sub-file at %d: %w: %v", sf.start, ErrProtocolMismatch, err)
	}
	sf.comp = c
	if c.ID() != compress.IDNone {
		return nil
	}
	for _, b := range sf.bunches {
		if sumSizes(b.sizes) != b.stored {
			return corruptf(b.trailerPos, "record sizes add up to %d, payload is %d", sumSizes(b.sizes), b.stored)
		}
	}
	return nil
}

func (s *scanner) magic() []byte {
	if s.lay.protocol() == ProtocolICF {
		return magicICF[:]
	}
	return magicSOF[:]
}

// headerOnlyEndingAt finds a sub-file without any bunches whose header
// ends exactly at end.
func (s *scanner) headerOnlyEndingAt(r io.ReaderAt, end int64) (*subFile, error) {
	lo := max(0, end-maxHeaderLen)
	window := make([]byte, end-lo)
	if _, err := r.ReadAt(window, lo); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	magic := s.magic()
	for i := len(window) - fileHeaderSize; i >= 0; i-- {
		if !bytes.Equal(window[i:i+len(magic)], magic) {
			continue
		}
		start := lo + int64(i)
		h, err := readHeader(r, s.lay.protocol(), start, end)
		if err != nil || start+h.size() != end {
			continue
		}
		sf := &subFile{start: start, header: h}
		if err := s.attachCompressor(sf); err != nil {
			return nil, err
		}
		return sf, nil
	}
	return nil, corruptf(end, "no header ends here")
}

// recoverTail searches backward from size for the last position where a
// complete sub-file ends.  The file tail is read into memory in growing
// windows so each candidate is checked without a syscall.
func (s *scanner) recoverTail(size int64) (*subFile, error) {
	next := size - 1 // highest end not yet tried
	for w := int64(initialRecoveryWindow); ; w *= 2 {
		lo := max(0, size-w)
		win, err := newWindowReader(s.r, lo, size)
		if err != nil {
			return nil, err
		}
		headerEnds := s.headerEnds(win)
		for end := next; end > lo && end >= fileHeaderSize; end-- {
			if sf, err := s.chainEndingAt(win, end); err == nil {
				return sf, nil
			}
			if headerEnds[end] {
				if sf, err := s.headerOnlyEndingAt(win, end); err == nil {
					return sf, nil
				}
			}
		}
		next = lo
		if lo == 0 || w >= maxRecoveryWindow {
			break
		}
	}
	return nil, corruptf(size, "no complete sub-file in the last %d bytes", size-next)
}

// headerEnds lists where each magic-prefixed header in the window would end.
func (s *scanner) headerEnds(win *windowReader) map[int64]bool {
	ends := make(map[int64]bool)
	magic := s.magic()
	buf := win.buf
	for off := 0; ; {
		i := bytes.Index(buf[off:], magic)
		if i < 0 {
			break
		}
		start := off + i
		off = start + 1
		if start+fileHeaderSize > len(buf) {
			continue
		}
		var h fileHeader
		extLen, err := h.unmarshalFixed(s.lay.protocol(), buf[start:start+fileHeaderSize])
		if err != nil {
			continue
		}
		ends[win.base+int64(start)+fileHeaderSize+int64(extLen)] = true
	}
	return ends
}

// windowReader serves reads from an in-memory copy of [base, base+len(buf))
// and falls through to r outside it.
type windowReader struct {
	r    io.ReaderAt
	base int64
	buf  []byte
}

func newWindowReader(r io.ReaderAt, lo, hi int64) (*windowReader, error) {
	buf := make([]byte, hi-lo)
	if _, err := r.ReadAt(buf, lo); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ReadAt(%d, %d): %w", lo, hi, err)
	}
	return &windowReader{r: r, base: lo, buf: buf}, nil
}

func (w *windowReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= w.base && off+int64(len(p)) <= w.base+int64(len(w.buf)) {
		return copy(p, w.buf[off-w.base:]), nil
	}
	return w.r.ReadAt(p, off)
}

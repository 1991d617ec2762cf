// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

type legacyChunk struct {
	off int64 // payload offset
	len uint32
	crc uint32
}

// legacyIndex locates the chunks of a legacy file.  Chunks carry no
// trailer, so the index is built by a forward scan that can resume
// where the last one stopped.
type legacyIndex struct {
	r      io.ReaderAt
	chunks []legacyChunk
	next   int64 // offset of the first chunk not yet indexed
}

func newLegacyIndex(r io.ReaderAt) *legacyIndex {
	return &legacyIndex{r: r, next: fileHeaderSize}
}

// scan indexes every complete chunk below size.  A chunk that runs past
// size is still being written and is left for a later scan.
func (l *legacyIndex) scan(size int64) error {
	if l.next >= size {
		return nil
	}
	br := bufio.NewReaderSize(io.NewSectionReader(l.r, l.next, size-l.next), 64*1024)
	var header [legacyChunkHeaderSize]byte
	for l.next+legacyChunkHeaderSize <= size {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("reading chunk header @ %d: %w", l.next, err)
		}
		c := legacyChunk{
			off: l.next + legacyChunkHeaderSize,
			len: binary.LittleEndian.Uint32(header[0:4]),
			crc: binary.LittleEndian.Uint32(header[4:8]),
		}
		if c.off+int64(c.len) > size {
			break
		}
		if _, err := br.Discard(int(c.len)); err != nil {
			return fmt.Errorf("skipping chunk @ %d: %w", l.next, err)
		}
		l.chunks = append(l.chunks, c)
		l.next = c.off + int64(c.len)
	}
	return nil
}

func (l *legacyIndex) len() int64 {
	return int64(len(l.chunks))
}

// readAt reads chunk i and checks its checksum.
func (l *legacyIndex) readAt(i int64) ([]byte, error) {
	if i < 0 || i >= int64(len(l.chunks)) {
		return nil, fmt.Errorf("record %d of %d: %w", i, len(l.chunks), ErrOutOfRange)
	}
	c := l.chunks[i]
	out := make([]byte, c.len)
	if _, err := l.r.ReadAt(out, c.off); err != nil {
		return nil, fmt.Errorf("ReadAt(record %d @ %d): %w", i, c.off, err)
	}
	if sum := crc32.ChecksumIEEE(out); sum != c.crc {
		return nil, corruptf(c.off, "record %d checksum %08x, chunk header says %08x", i, sum, c.crc)
	}
	return out, nil
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/bpowers/icf/internal/ondisk"
)

const (
	sofTrailerSize = 8 + 8 + 8 + 4 + 4 + 2
	icfTrailerSize = 2 + 2 + 8 + 8 + 8 + 4 + 4 + 4 + 4
	icfFooterSize  = 4

	icfTrailerVersion = 0
)

// bunchInfo describes one bunch as found on disk or as about to be
// written.  Positions are absolute file offsets.
type bunchInfo struct {
	trailerPos int64
	dataStart  int64
	end        int64
	stored     int64 // payload bytes on disk
	fileOffset uint64
	backOffset uint64
	number     uint32
	crc        uint32
	timestamp  uint64
	count      int64
	sizes      []uint32 // loaded by layout.loadSizes
}

// layout is the part of the bunched formats that differs between the
// SOF and ICF protocols.  Both place a fixed trailer near the end of
// each bunch and chain trailers backward with relative offsets.
type layout interface {
	protocol() Protocol
	// numberMask is applied to bunch numbers, which wrap on disk.
	numberMask() uint32
	// trailerOffset is where the trailer starts relative to the start of
	// a bunch with the given stored payload size and record count.
	trailerOffset(stored int64, n int) int64
	appendBunch(dst []byte, b *bunchInfo, stored []byte) ([]byte, error)
	// trailerBefore locates the trailer of a bunch ending at end.
	trailerBefore(r io.ReaderAt, end int64) (int64, error)
	// bunchAt parses the trailer starting at trailerPos.  The bunch
	// must end at or before limit.  The size table isn't read.
	bunchAt(r io.ReaderAt, trailerPos, limit int64) (*bunchInfo, error)
	// loadSizes reads and checks the size table of b.
	loadSizes(r io.ReaderAt, b *bunchInfo) error
}

func layoutFor(p Protocol) (layout, error) {
	switch p {
	case ProtocolSOF:
		return sofLayout{}, nil
	case ProtocolICF:
		return icfLayout{}, nil
	}
	return nil, fmt.Errorf("%s has no bunch layout: %w", p, ErrProtocolMismatch)
}

func readSizes(r io.ReaderAt, n int, off int64) ([]uint32, error) {
	sizes, err := ondisk.NewU32Slice(r, n, off).ReadAll()
	if err != nil {
		return nil, corruptf(off, "size table of %d entries: %v", n, err)
	}
	return sizes, nil
}

func sumSizes(sizes []uint32) int64 {
	var total int64
	for _, s := range sizes {
		total += int64(s)
	}
	return total
}

// sofLayout: [payload][size table n × u32][trailer]
//
// trailer: back offset u64, payload size u64, file offset u64, crc32
// u32, record count u32, bunch number u16.
type sofLayout struct{}

func (sofLayout) protocol() Protocol { return ProtocolSOF }
func (sofLayout) numberMask() uint32 { return math.MaxUint16 }

func (sofLayout) trailerOffset(stored int64, n int) int64 {
	return stored + 4*int64(n)
}

func (sofLayout) appendBunch(dst []byte, b *bunchInfo, stored []byte) ([]byte, error) {
	if uint64(len(b.sizes)) > math.MaxUint32 {
		return nil, fmt.Errorf("%d records in one bunch: %w", len(b.sizes), ErrTooLarge)
	}
	dst = append(dst, stored...)
	dst = ondisk.AppendU32s(dst, b.sizes...)
	dst = binary.LittleEndian.AppendUint64(dst, b.backOffset)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(stored)))
	dst = binary.LittleEndian.AppendUint64(dst, b.fileOffset)
	dst = binary.LittleEndian.AppendUint32(dst, b.crc)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b.sizes)))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(b.number))
	return dst, nil
}

func (sofLayout) trailerBefore(r io.ReaderAt, end int64) (int64, error) {
	if end < sofTrailerSize {
		return 0, corruptf(end, "no room for a trailer")
	}
	return end - sofTrailerSize, nil
}

func (sofLayout) bunchAt(r io.ReaderAt, pos, limit int64) (*bunchInfo, error) {
	if pos < 0 || pos > limit-sofTrailerSize {
		return nil, corruptf(pos, "trailer runs past %d", limit)
	}
	var buf [sofTrailerSize]byte
	if _, err := r.ReadAt(buf[:], pos); err != nil {
		return nil, corruptf(pos, "reading trailer: %v", err)
	}
	b := &bunchInfo{
		trailerPos: pos,
		end:        pos + sofTrailerSize,
		backOffset: binary.LittleEndian.Uint64(buf[0:8]),
		fileOffset: binary.LittleEndian.Uint64(buf[16:24]),
		crc:        binary.LittleEndian.Uint32(buf[24:28]),
		number:     uint32(binary.LittleEndian.Uint16(buf[32:34])),
	}
	stored := binary.LittleEndian.Uint64(buf[8:16])
	n := int64(binary.LittleEndian.Uint32(buf[28:32]))
	if n == 0 {
		return nil, corruptf(pos, "empty bunch")
	}
	tableStart := pos - 4*n
	if tableStart < 0 || stored > uint64(tableStart) {
		return nil, corruptf(pos, "bunch of %d bytes and %d records doesn't fit before its trailer", stored, n)
	}
	b.stored = int64(stored)
	b.count = n
	b.dataStart = tableStart - b.stored
	return b, nil
}

func (sofLayout) loadSizes(r io.ReaderAt, b *bunchInfo) error {
	sizes, err := readSizes(r, int(b.count), b.trailerPos-4*b.count)
	if err != nil {
		return err
	}
	b.sizes = sizes
	return nil
}

// icfLayout: [payload][trailer][size table n × u32][footer u32]
//
// trailer: version u16, flags u16, timestamp u64, file offset u64, back
// offset u64, payload size u32, record count u32, bunch number u32,
// flags u32.  The footer holds the distance from the trailer start to
// the footer start.
type icfLayout struct{}

func (icfLayout) protocol() Protocol { return ProtocolICF }
func (icfLayout) numberMask() uint32 { return math.MaxUint32 }

func (icfLayout) trailerOffset(stored int64, n int) int64 {
	return stored
}

func (icfLayout) appendBunch(dst []byte, b *bunchInfo, stored []byte) ([]byte, error) {
	if uint64(len(stored)) > math.MaxUint32 || len(b.sizes) > (math.MaxUint32-icfTrailerSize)/4 {
		return nil, fmt.Errorf("bunch of %d bytes and %d records: %w", len(stored), len(b.sizes), ErrTooLarge)
	}
	dst = append(dst, stored...)
	dst = binary.LittleEndian.AppendUint16(dst, icfTrailerVersion)
	dst = binary.LittleEndian.AppendUint16(dst, 0) // flags
	dst = binary.LittleEndian.AppendUint64(dst, b.timestamp)
	dst = binary.LittleEndian.AppendUint64(dst, b.fileOffset)
	dst = binary.LittleEndian.AppendUint64(dst, b.backOffset)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(stored)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b.sizes)))
	dst = binary.LittleEndian.AppendUint32(dst, b.number)
	dst = binary.LittleEndian.AppendUint32(dst, 0) // flags
	dst = ondisk.AppendU32s(dst, b.sizes...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(icfTrailerSize+4*len(b.sizes)))
	return dst, nil
}

func (icfLayout) trailerBefore(r io.ReaderAt, end int64) (int64, error) {
	if end < icfTrailerSize+icfFooterSize {
		return 0, corruptf(end, "no room for a trailer")
	}
	var buf [icfFooterSize]byte
	if _, err := r.ReadAt(buf[:], end-icfFooterSize); err != nil {
		return 0, corruptf(end-icfFooterSize, "reading footer: %v", err)
	}
	footer := int64(binary.LittleEndian.Uint32(buf[:]))
	if footer < icfTrailerSize || (footer-icfTrailerSize)%4 != 0 || footer > end-icfFooterSize {
		return 0, corruptf(end-icfFooterSize, "footer %d doesn't point at a trailer", footer)
	}
	return end - icfFooterSize - footer, nil
}

func (icfLayout) bunchAt(r io.ReaderAt, pos, limit int64) (*bunchInfo, error) {
	if pos < 0 || pos > limit-icfTrailerSize-icfFooterSize {
		return nil, corruptf(pos, "trailer runs past %d", limit)
	}
	var buf [icfTrailerSize]byte
	if _, err := r.ReadAt(buf[:], pos); err != nil {
		return nil, corruptf(pos, "reading trailer: %v", err)
	}
	if v := binary.LittleEndian.Uint16(buf[0:2]); v != icfTrailerVersion {
		return nil, corruptf(pos, "trailer version %d", v)
	}
	// flags at [2:4] and [40:44] are reserved and ignored
	b := &bunchInfo{
		trailerPos: pos,
		timestamp:  binary.LittleEndian.Uint64(buf[4:12]),
		fileOffset: binary.LittleEndian.Uint64(buf[12:20]),
		backOffset: binary.LittleEndian.Uint64(buf[20:28]),
		stored:     int64(binary.LittleEndian.Uint32(buf[28:32])),
		number:     binary.LittleEndian.Uint32(buf[36:40]),
	}
	n := int64(binary.LittleEndian.Uint32(buf[32:36]))
	if n == 0 {
		return nil, corruptf(pos, "empty bunch")
	}
	tableStart := pos + icfTrailerSize
	if n > (limit-tableStart-icfFooterSize)/4 {
		return nil, corruptf(pos, "size table of %d entries runs past %d", n, limit)
	}
	b.end = tableStart + 4*n + icfFooterSize
	if b.stored > pos {
		return nil, corruptf(pos, "payload of %d bytes starts before the file", b.stored)
	}
	b.dataStart = pos - b.stored

	var footer [icfFooterSize]byte
	if _, err := r.ReadAt(footer[:], b.end-icfFooterSize); err != nil {
		return nil, corruptf(b.end-icfFooterSize, "reading footer: %v", err)
	}
	if f := int64(binary.LittleEndian.Uint32(footer[:])); f != icfTrailerSize+4*n {
		return nil, corruptf(b.end-icfFooterSize, "footer %d doesn't match %d records", f, n)
	}
	b.count = n
	return b, nil
}

func (icfLayout) loadSizes(r io.ReaderAt, b *bunchInfo) error {
	sizes, err := readSizes(r, int(b.count), b.trailerPos+icfTrailerSize)
	if err != nil {
		return err
	}
	if sumSizes(sizes) != b.stored {
		return corruptf(b.trailerPos, "record sizes add up to %d, payload is %d", sumSizes(sizes), b.stored)
	}
	b.sizes = sizes
	return nil
}

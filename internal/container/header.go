// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/bpowers/icf/compress"
)

// Protocol selects the on-disk layout.
type Protocol int

const (
	// ProtocolLegacy writes one checksummed chunk per record.
	ProtocolLegacy Protocol = 0
	// ProtocolSOF buffers records into optionally compressed, checksummed bunches.
	ProtocolSOF Protocol = 1
	// ProtocolICF is the bunched layout of the appendable File engine.
	ProtocolICF Protocol = 2
)

func (p Protocol) String() string {
	switch p {
	case ProtocolLegacy:
		return "legacy"
	case ProtocolSOF:
		return "sof"
	case ProtocolICF:
		return "icf"
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

const (
	fileHeaderSize = 24
	// detectSize bytes are enough to tell the protocols apart.
	detectSize = 12
	maxExtLen  = math.MaxUint16
)

var (
	magicSOF = [4]byte{'S', 'O', 'F', 0}
	magicICF = [4]byte{'I', 'C', 'F', 0}
)

// fileHeader is the union of the three header layouts.
type fileHeader struct {
	protocol   Protocol
	identExt   [4]byte
	version    uint32
	timestamp  uint64 // unix seconds
	compressor compress.ID
	ext        []byte
	custom     uint64 // legacy only
}

func (h *fileHeader) size() int64 {
	return fileHeaderSize + int64(len(h.ext))
}

func (h *fileHeader) time() time.Time {
	return time.Unix(int64(h.timestamp), 0)
}

// MarshalBinary lays out the header and its extension bytes.
func (h *fileHeader) MarshalBinary() ([]byte, error) {
	if len(h.ext) > maxExtLen {
		return nil, fmt.Errorf("header extension of %d bytes exceeds %d: %w", len(h.ext), maxExtLen, ErrTooLarge)
	}
	var buf [fileHeaderSize]byte
	switch h.protocol {
	case ProtocolLegacy:
		if len(h.ext) != 0 {
			return nil, fmt.Errorf("legacy headers have no extension: %w", ErrProtocolMismatch)
		}
		binary.LittleEndian.PutUint64(buf[0:8], h.custom)
		binary.LittleEndian.PutUint32(buf[8:12], 0)
		// 3 reserved words stay zero
	case ProtocolSOF:
		copy(buf[0:4], magicSOF[:])
		copy(buf[4:8], h.identExt[:])
		binary.LittleEndian.PutUint32(buf[8:12], 1)
		binary.LittleEndian.PutUint64(buf[12:20], h.timestamp)
		binary.LittleEndian.PutUint16(buf[20:22], uint16(h.compressor))
		binary.LittleEndian.PutUint16(buf[22:24], uint16(len(h.ext)))
	case ProtocolICF:
		copy(buf[0:4], magicICF[:])
		copy(buf[4:8], h.identExt[:])
		binary.LittleEndian.PutUint16(buf[8:10], uint16(h.version))
		binary.LittleEndian.PutUint16(buf[10:12], uint16(h.compressor))
		binary.LittleEndian.PutUint64(buf[12:20], h.timestamp)
		// buf[20:22] reserved
		binary.LittleEndian.PutUint16(buf[22:24], uint16(len(h.ext)))
	default:
		return nil, fmt.Errorf("%s: %w", h.protocol, ErrProtocolMismatch)
	}
	return append(buf[:], h.ext...), nil
}

func (h *fileHeader) WriteTo(w io.Writer) (n int64, err error) {
	b, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}
	written, err := w.Write(b)
	if err != nil {
		return int64(written), fmt.Errorf("write: %w", err)
	}
	return int64(written), nil
}

// detectProtocol looks at the first detectSize bytes of a (sub-)file.
func detectProtocol(b []byte) (Protocol, error) {
	if len(b) < detectSize {
		return 0, fmt.Errorf("%d bytes is too short for a header: %w", len(b), ErrFormat)
	}
	if bytes.Equal(b[0:4], magicICF[:]) {
		return ProtocolICF, nil
	}
	switch v := binary.LittleEndian.Uint32(b[8:12]); v {
	case 0:
		return ProtocolLegacy, nil
	case 1:
		if !bytes.Equal(b[0:4], magicSOF[:]) {
			return 0, fmt.Errorf("version 1 header with magic %q: %w", b[0:4], ErrFormat)
		}
		return ProtocolSOF, nil
	default:
		return 0, fmt.Errorf("header version %d: %w", v, ErrProtocolMismatch)
	}
}

// unmarshalFixed parses the fixed 24 bytes of a header of protocol p and
// returns the extension length still to be read.
func (h *fileHeader) unmarshalFixed(p Protocol, b []byte) (extLen int, err error) {
	if len(b) < fileHeaderSize {
		return 0, fmt.Errorf("headerBytes too short: %d < %d: %w", len(b), fileHeaderSize, ErrFormat)
	}
	b = b[:fileHeaderSize]
	*h = fileHeader{protocol: p}
	switch p {
	case ProtocolLegacy:
		h.custom = binary.LittleEndian.Uint64(b[0:8])
		if v := binary.LittleEndian.Uint32(b[8:12]); v != 0 {
			return 0, fmt.Errorf("legacy header version %d: %w", v, ErrFormat)
		}
		return 0, nil
	case ProtocolSOF:
		if !bytes.Equal(b[0:4], magicSOF[:]) {
			return 0, fmt.Errorf("bad magic %q: %w", b[0:4], ErrFormat)
		}
		copy(h.identExt[:], b[4:8])
		h.version = binary.LittleEndian.Uint32(b[8:12])
		if h.version != 1 {
			return 0, fmt.Errorf("sof header version %d: %w", h.version, ErrProtocolMismatch)
		}
		h.timestamp = binary.LittleEndian.Uint64(b[12:20])
		h.compressor = compress.ID(binary.LittleEndian.Uint16(b[20:22]))
		return int(binary.LittleEndian.Uint16(b[22:24])), nil
	case ProtocolICF:
		if !bytes.Equal(b[0:4], magicICF[:]) {
			return 0, fmt.Errorf("bad magic %q: %w", b[0:4], ErrFormat)
		}
		copy(h.identExt[:], b[4:8])
		h.version = uint32(binary.LittleEndian.Uint16(b[8:10]))
		h.compressor = compress.ID(binary.LittleEndian.Uint16(b[10:12]))
		h.timestamp = binary.LittleEndian.Uint64(b[12:20])
		if h.compressor != compress.IDNone {
			return 0, fmt.Errorf("icf sub-file with compression %d: %w", h.compressor, ErrProtocolMismatch)
		}
		return int(binary.LittleEndian.Uint16(b[22:24])), nil
	}
	return 0, fmt.Errorf("%s: %w", p, ErrProtocolMismatch)
}

// readHeader reads a complete header of protocol p at off, requiring it
// to end at or before limit.
func readHeader(r io.ReaderAt, p Protocol, off, limit int64) (*fileHeader, error) {
	if off < 0 || limit-off < fileHeaderSize {
		return nil, fmt.Errorf("header at %d doesn't fit before %d: %w", off, limit, ErrFormat)
	}
	var buf [fileHeaderSize]byte
	if _, err := r.ReadAt(buf[:], off); err != nil {
		return nil, fmt.Errorf("ReadAt(header @ %d): %w", off, err)
	}
	h := new(fileHeader)
	extLen, err := h.unmarshalFixed(p, buf[:])
	if err != nil {
		return nil, err
	}
	if int64(extLen) > limit-off-fileHeaderSize {
		return nil, fmt.Errorf("header extension of %d bytes at %d runs past %d: %w", extLen, off, limit, ErrFormat)
	}
	if extLen > 0 {
		h.ext = make([]byte, extLen)
		if _, err := r.ReadAt(h.ext, off+fileHeaderSize); err != nil {
			return nil, fmt.Errorf("ReadAt(header ext @ %d): %w", off+fileHeaderSize, err)
		}
	}
	return h, nil
}

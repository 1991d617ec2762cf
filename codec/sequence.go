// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// sizes below this are stored as a u16 holding size<<1
	shortSizeLimit = 1 << 15
	maxItemSize    = math.MaxInt32
)

// seqCodec resolves item codecs through the registry it belongs to.
type seqCodec struct {
	r *Registry
}

func (seqCodec) Name() string   { return "Sequence" }
func (seqCodec) Module() string { return "" }
func (seqCodec) Tag() byte      { return 'q' }

func appendItemSize(dst []byte, size int) ([]byte, error) {
	switch {
	case size < shortSizeLimit:
		return binary.LittleEndian.AppendUint16(dst, uint16(size<<1)), nil
	case size <= maxItemSize:
		return binary.LittleEndian.AppendUint32(dst, uint32(size)<<1|1), nil
	default:
		return nil, fmt.Errorf("sequence item of %d bytes is too large: %w", size, ErrMalformed)
	}
}

// readItemSize decodes a size field, returning the size and the width of
// the field.  The low bit of the first byte selects the width.
func readItemSize(data []byte) (size, width int, err error) {
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("sequence item size: %w", ErrMalformed)
	}
	if data[0]&1 == 0 {
		return int(binary.LittleEndian.Uint16(data) >> 1), 2, nil
	}
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("sequence item size: %w", ErrMalformed)
	}
	return int(binary.LittleEndian.Uint32(data) >> 1), 4, nil
}

func (s seqCodec) Encode(dst []byte, v Value) ([]byte, error) {
	seq, ok := v.(Sequence)
	if !ok {
		return nil, fmt.Errorf("Sequence codec: unexpected %T", v)
	}
	typ := seq.Type
	if typ == 0 {
		typ = List
	}
	if !typ.valid() {
		return nil, fmt.Errorf("sequence subtype %q: %w", byte(typ), ErrMalformed)
	}
	dst = append(dst, byte(typ))
	var payload []byte
	for i, item := range seq.Items {
		c, err := s.r.CodecFor(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		payload, err = c.Encode(payload[:0], item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		dst = append(dst, c.Tag())
		if dst, err = appendItemSize(dst, len(payload)); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		dst = append(dst, payload...)
	}
	return dst, nil
}

func (s seqCodec) Decode(data []byte) (Value, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("sequence subtype: %w", ErrMalformed)
	}
	seq := Sequence{Type: SeqType(data[0]), Items: []Value{}}
	if !seq.Type.valid() {
		return nil, fmt.Errorf("sequence subtype %q: %w", data[0], ErrMalformed)
	}
	data = data[1:]
	for len(data) > 0 {
		tag := data[0]
		c, ok := s.r.LookupTag(tag)
		if !ok {
			return nil, fmt.Errorf("item %d tag %q: %w", len(seq.Items), tag, ErrUnknownCodec)
		}
		size, width, err := readItemSize(data[1:])
		if err != nil {
			return nil, err
		}
		data = data[1+width:]
		if size > len(data) {
			return nil, fmt.Errorf("item %d of %d bytes overruns sequence (%d left): %w", len(seq.Items), size, len(data), ErrMalformed)
		}
		item, err := c.Decode(data[:size])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", len(seq.Items), err)
		}
		seq.Items = append(seq.Items, item)
		data = data[size:]
	}
	return seq, nil
}

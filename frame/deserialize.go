// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/bpowers/icf/codec"
	"github.com/bpowers/icf/internal/bytesutil"
	"github.com/bpowers/icf/internal/ondisk"
	"github.com/bpowers/icf/internal/unsafestring"
)

// Deserialize parses the directory of a serialized frame.  Values are
// decoded on demand by Get; values whose codec isn't in reg are kept as
// raw bytes and logged.  data is copied, so the caller may reuse it.
func Deserialize(data []byte, reg *codec.Registry, opts ...Option) (*Frame, error) {
	f := New(reg, opts...)
	if len(data) < footerSize {
		return nil, fmt.Errorf("%d bytes is shorter than the footer: %w", len(data), ErrFormat)
	}
	data = append([]byte(nil), data...)
	footer := data[len(data)-footerSize:]
	dirLen := uint64(binary.LittleEndian.Uint32(footer[0:4]))
	n := uint64(binary.LittleEndian.Uint32(footer[4:8]))
	dirStart := uint64(binary.LittleEndian.Uint32(footer[8:12]))

	body := uint64(len(data) - footerSize)
	if dirStart+dirLen != body {
		return nil, fmt.Errorf("directory [%d, %d) doesn't end at footer %d: %w", dirStart, dirStart+dirLen, body, ErrFormat)
	}
	if 4*n > dirStart {
		return nil, fmt.Errorf("%d end offsets don't fit before directory at %d: %w", n, dirStart, ErrFormat)
	}
	payloadEnd := dirStart - 4*n
	ends, err := ondisk.DecodeU32s(data[payloadEnd:dirStart], int(n))
	if err != nil {
		return nil, fmt.Errorf("end offsets: %w: %v", ErrFormat, err)
	}

	var start uint64
	for i, end := range ends {
		if uint64(end) < start || uint64(end) > payloadEnd {
			return nil, fmt.Errorf("entry %d spans [%d, %d) outside payload of %d bytes: %w", i, start, end, payloadEnd, ErrFormat)
		}
		start = uint64(end)
	}

	var i int
	var lineErr error
	bytesutil.Lines(data[dirStart:body], func(line []byte) bool {
		if i >= len(ends) {
			lineErr = fmt.Errorf("directory has more than %d entries: %w", n, ErrFormat)
			return false
		}
		key, name, module, ok := bytesutil.Split3(line, ',')
		if !ok {
			lineErr = fmt.Errorf("directory entry %d %q: %w", i, line, ErrFormat)
			return false
		}
		if _, dup := f.slots[string(key)]; dup {
			lineErr = fmt.Errorf("directory repeats key %q: %w", key, ErrFormat)
			return false
		}
		var begin uint32
		if i > 0 {
			begin = ends[i-1]
		}
		s := &slot{state: pending, raw: data[begin:ends[i]:ends[i]]}
		if c, found := reg.Lookup(unsafestring.FromBytes(name), unsafestring.FromBytes(module)); found {
			s.name, s.module = c.Name(), c.Module()
		} else {
			s.name, s.module = string(name), string(module)
			s.state = opaque
			f.logger.Warn("frame value has unknown codec; keeping raw bytes",
				"key", string(key), "codec", s.name, "module", s.module)
		}
		f.slots[string(key)] = s
		i++
		return true
	})
	if lineErr != nil {
		return nil, lineErr
	}
	if i != len(ends) {
		return nil, fmt.Errorf("directory has %d entries, footer says %d: %w", i, n, ErrFormat)
	}
	return f, nil
}

// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package frame packs a set of named values into a single record.
//
// A serialized frame looks like:
//
//	┌──────────────────────────────┐
//	│ payload of key 0             │
//	│ payload of key 1             │
//	│ ...                          │
//	├──────────────────────────────┤
//	│ end offsets, n × u32         │
//	├──────────────────────────────┤ ← dir start
//	│ "key,codec,module\n" × n     │
//	├──────────────────────────────┤
//	│ dir len u32                  │
//	│ n u32                        │
//	│ dir start u32                │
//	└──────────────────────────────┘
//
// Keys are written in sorted order.  End offsets are cumulative and
// relative to the start of the frame.  The module column is empty for
// built-in codecs.
//
// Values are decoded lazily: Deserialize only parses the directory, and
// each value is decoded on its first Get.  Values whose codec isn't in
// the registry, or that fail to decode, stay available as raw bytes and
// are written back unchanged by Serialize.
package frame

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/bpowers/icf/codec"
	"github.com/bpowers/icf/internal/ondisk"
)

const footerSize = 3 * 4

var (
	// ErrFormat is returned by Deserialize for buffers that aren't frames.
	ErrFormat = errors.New("malformed frame")
	// ErrInvalidKey is returned by Serialize for keys or codec names
	// containing ',' or '\n'.
	ErrInvalidKey = errors.New("invalid frame key")
)

// Option configures a Frame.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report values that can't be
// decoded.  If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type slotState uint8

const (
	materialized slotState = iota
	pending                // raw bytes with a known codec, not decoded yet
	opaque                 // raw bytes only: unknown codec or failed decode
)

type slot struct {
	state  slotState
	value  codec.Value
	raw    []byte
	name   string
	module string
}

// Slot is the result of a Get.  Exactly one of Value or Raw is set: Raw
// holds a copy of the undecoded payload when the codec is unknown or
// decoding failed.
type Slot struct {
	Value  codec.Value
	Raw    []byte
	Codec  string
	Module string
}

// IsRaw reports whether the value could not be decoded.
func (s Slot) IsRaw() bool {
	return s.Value == nil
}

// Frame is an ordered mapping from string keys to values.  A Frame is
// not safe for concurrent use.
type Frame struct {
	reg    *codec.Registry
	logger *slog.Logger
	slots  map[string]*slot
}

func newOptions(opts []Option) options {
	var o options
	o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns an empty frame that encodes values with reg.
func New(reg *codec.Registry, opts ...Option) *Frame {
	o := newOptions(opts)
	return &Frame{
		reg:    reg,
		logger: o.logger,
		slots:  make(map[string]*slot),
	}
}

// Add inserts or overwrites key.  Whether v can be encoded is only
// checked by Serialize.
func (f *Frame) Add(key string, v codec.Value) {
	f.slots[key] = &slot{state: materialized, value: v}
}

// AddAny converts v with codec.Of and adds it.
func (f *Frame) AddAny(key string, v any) error {
	cv, ok := codec.Of(v)
	if !ok {
		return fmt.Errorf("key %q: %T: %w", key, v, codec.ErrUnknownCodec)
	}
	f.Add(key, cv)
	return nil
}

func (f *Frame) Delete(key string) {
	delete(f.slots, key)
}

func (f *Frame) Has(key string) bool {
	_, ok := f.slots[key]
	return ok
}

func (f *Frame) Len() int {
	return len(f.slots)
}

// Keys returns every key, decoded or not, in sorted order.
func (f *Frame) Keys() []string {
	keys := make([]string, 0, len(f.slots))
	for k := range f.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value stored under key, decoding it on first access.
// A decode failure is logged and the slot keeps its raw bytes from then on.
func (f *Frame) Get(key string) (Slot, bool) {
	s, ok := f.slots[key]
	if !ok {
		return Slot{}, false
	}
	if s.state == pending {
		v, err := f.reg.Decode(s.name, s.module, s.raw)
		if err != nil {
			f.logger.Warn("frame value failed to decode; keeping raw bytes",
				"key", key, "codec", s.name, "module", s.module, "err", err)
			s.state = opaque
		} else {
			s.state = materialized
			s.value = v
		}
	}
	if s.state == opaque {
		return Slot{Raw: append([]byte(nil), s.raw...), Codec: s.name, Module: s.module}, true
	}
	if s.name == "" {
		// added directly; report the codec Serialize would pick
		if c, err := f.reg.CodecFor(s.value); err == nil {
			s.name, s.module = c.Name(), c.Module()
		}
	}
	return Slot{Value: s.value, Codec: s.name, Module: s.module}, true
}

func checkIdent(what, s string) error {
	if strings.ContainsAny(s, ",\n") {
		return fmt.Errorf("%s %q contains ',' or newline: %w", what, s, ErrInvalidKey)
	}
	return nil
}

// Serialize encodes the frame.  Raw values are written back byte for byte.
func (f *Frame) Serialize() ([]byte, error) {
	keys := f.Keys()
	if uint64(len(keys)) > math.MaxUint32 {
		return nil, fmt.Errorf("%d keys: %w", len(keys), ErrInvalidKey)
	}
	var data []byte
	ends := make([]uint32, 0, len(keys))
	var dir strings.Builder
	for _, key := range keys {
		s := f.slots[key]
		name, module, payload := s.name, s.module, s.raw
		if s.state == materialized {
			c, p, err := f.reg.Encode(s.value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			name, module, payload = c.Name(), c.Module(), p
		}
		for _, id := range [][2]string{{"key", key}, {"codec", name}, {"module", module}} {
			if err := checkIdent(id[0], id[1]); err != nil {
				return nil, err
			}
		}
		data = append(data, payload...)
		if uint64(len(data)) > math.MaxUint32 {
			return nil, fmt.Errorf("frame payloads exceed 4GB at key %q: %w", key, ErrInvalidKey)
		}
		ends = append(ends, uint32(len(data)))
		dir.WriteString(key)
		dir.WriteByte(',')
		dir.WriteString(name)
		dir.WriteByte(',')
		dir.WriteString(module)
		dir.WriteByte('\n')
	}
	data = ondisk.AppendU32s(data, ends...)
	dirStart := len(data)
	data = append(data, dir.String()...)
	if uint64(len(data))+footerSize > math.MaxUint32 {
		return nil, fmt.Errorf("frame exceeds 4GB: %w", ErrInvalidKey)
	}
	data = ondisk.AppendU32s(data, uint32(dir.Len()), uint32(len(keys)), uint32(dirStart))
	return data, nil
}

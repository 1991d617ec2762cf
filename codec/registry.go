// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alphadose/haxmap"
)

// Codec encodes one kind of Value.
type Codec interface {
	// Name and Module identify the codec in frame directories.  Module
	// is empty for built-ins.
	Name() string
	Module() string
	// Tag identifies the codec inside sequences and standalone encodings.
	Tag() byte
	// Encode appends the payload for v to dst.
	Encode(dst []byte, v Value) ([]byte, error)
	Decode(data []byte) (Value, error)
}

// Registry resolves codecs by name and module or by tag.  Lookups are
// safe for concurrent use, including concurrently with Register.
type Registry struct {
	mu sync.Mutex // serializes Register
	// byName maps a codec name to every codec sharing it, one per module.
	byName *haxmap.Map[string, []Codec]
	byTag  *haxmap.Map[uint8, Codec]

	array, text, bytes, integer, float, complex, seq Codec
}

// NewRegistry returns a registry holding the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{
		byName:  haxmap.New[string, []Codec](),
		byTag:   haxmap.New[uint8, Codec](),
		array:   arrayCodec{},
		text:    textCodec{},
		bytes:   bytesCodec{},
		integer: intCodec{},
		float:   floatCodec{},
		complex: complexCodec{},
	}
	r.seq = seqCodec{r: r}
	for _, c := range []Codec{r.array, r.text, r.bytes, r.integer, r.float, r.complex, r.seq} {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

var errConflict = errors.New("codec already registered")

func validIdent(s string) bool {
	return !strings.ContainsAny(s, ",\n")
}

// Register adds an extension codec.  Its tag and its (name, module) pair
// must both be unused.
func (r *Registry) Register(c Codec) error {
	if c.Name() == "" || !validIdent(c.Name()) || !validIdent(c.Module()) {
		return fmt.Errorf("codec name %q module %q: names must be non-empty and free of ',' and '\\n'", c.Name(), c.Module())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byTag.Get(c.Tag()); ok {
		return fmt.Errorf("tag %q used by %s: %w", c.Tag(), describe(prev), errConflict)
	}
	if prev, ok := r.Lookup(c.Name(), c.Module()); ok {
		return fmt.Errorf("%s: %w", describe(prev), errConflict)
	}
	same, _ := r.byName.Get(c.Name())
	// copy so concurrent readers never see a partially updated slice
	next := make([]Codec, 0, len(same)+1)
	next = append(next, same...)
	next = append(next, c)
	r.byName.Set(c.Name(), next)
	r.byTag.Set(c.Tag(), c)
	return nil
}

func describe(c Codec) string {
	if c.Module() == "" {
		return c.Name()
	}
	return c.Module() + "." + c.Name()
}

// Lookup finds the codec registered under name and module.
func (r *Registry) Lookup(name, module string) (Codec, bool) {
	same, ok := r.byName.Get(name)
	if !ok {
		return nil, false
	}
	for _, c := range same {
		if c.Module() == module {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) LookupTag(tag byte) (Codec, bool) {
	return r.byTag.Get(tag)
}

// CodecFor returns the codec that encodes v, dispatching on its kind.
func (r *Registry) CodecFor(v Value) (Codec, error) {
	switch x := v.(type) {
	case Array:
		return r.array, nil
	case Text:
		return r.text, nil
	case Bytes:
		return r.bytes, nil
	case Int:
		return r.integer, nil
	case Float:
		return r.float, nil
	case Complex:
		return r.complex, nil
	case Sequence:
		return r.seq, nil
	case Ext:
		c, ok := r.Lookup(x.Codec, x.Module)
		if !ok {
			return nil, fmt.Errorf("%q in module %q: %w", x.Codec, x.Module, ErrUnknownCodec)
		}
		return c, nil
	case nil:
		return nil, fmt.Errorf("nil value: %w", ErrUnknownCodec)
	}
	return nil, fmt.Errorf("%T: %w", v, ErrUnknownCodec)
}

// Encode returns the codec chosen for v along with v's payload.
func (r *Registry) Encode(v Value) (Codec, []byte, error) {
	c, err := r.CodecFor(v)
	if err != nil {
		return nil, nil, err
	}
	payload, err := c.Encode(nil, v)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", describe(c), err)
	}
	return c, payload, nil
}

// Decode decodes payload with the codec registered under name and module.
func (r *Registry) Decode(name, module string, payload []byte) (Value, error) {
	c, ok := r.Lookup(name, module)
	if !ok {
		return nil, fmt.Errorf("%q in module %q: %w", name, module, ErrUnknownCodec)
	}
	return c.Decode(payload)
}

// Marshal encodes v as its codec's tag followed by the payload.
func (r *Registry) Marshal(v Value) ([]byte, error) {
	c, err := r.CodecFor(v)
	if err != nil {
		return nil, err
	}
	out, err := c.Encode([]byte{c.Tag()}, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(c), err)
	}
	return out, nil
}

// Unmarshal reverses Marshal.
func (r *Registry) Unmarshal(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input: %w", ErrMalformed)
	}
	c, ok := r.LookupTag(data[0])
	if !ok {
		return nil, fmt.Errorf("tag %q: %w", data[0], ErrUnknownCodec)
	}
	return c.Decode(data[1:])
}

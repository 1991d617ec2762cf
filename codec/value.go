// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package codec turns typed values into tagged byte strings and back.
//
// A Value is one of a closed set of kinds: Array, Text, Bytes, Int,
// Float, Complex, Sequence, and Ext for values handled by codecs
// registered at runtime.  Every kind is encoded by a Codec identified
// on the wire either by a (name, module) pair, as in a frame
// directory, or by a single tag byte, as inside sequences and
// standalone encodings:
//
//	kind      name      tag  payload
//	Array     Array     'a'  dtype u8, ndim u8, ndim × u32 extents, LE elements
//	Text      Text      'u'  UTF-8 bytes
//	Bytes     Bytes     'b'  the bytes
//	Int       Int       'i'  LE two's complement, bitlen(|v|)/8+1 bytes
//	Float     Float     'f'  8-byte LE IEEE-754
//	Complex   Complex   'c'  two 8-byte LE IEEE-754 (real, imag)
//	Sequence  Sequence  'q'  subtype byte, then per item: tag, size, payload
//
// Built-in codecs have an empty module.  Lookups go through an explicit
// Registry; there is no package-level registry.
package codec

import (
	"errors"
)

var (
	// ErrUnknownDtype is returned when an array carries a dtype code outside the fixed table.
	ErrUnknownDtype = errors.New("unknown dtype")
	// ErrUnknownCodec is returned when a tag or (name, module) pair has no registered codec.
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrMalformed is returned when a payload doesn't match the shape its codec expects.
	ErrMalformed = errors.New("malformed payload")
)

// Value is implemented only by the kinds in this package.
type Value interface {
	isValue()
}

// Text is UTF-8 text.
type Text string

// Bytes is an opaque byte string.
type Bytes []byte

type Int int64

type Float float64

type Complex complex128

// SeqType records whether a sequence came from a list, tuple or set.
type SeqType byte

const (
	List  SeqType = 'l'
	Tuple SeqType = 't'
	Set   SeqType = 's'
)

func (t SeqType) valid() bool {
	return t == List || t == Tuple || t == Set
}

// Sequence is an ordered collection of values.  Set order is preserved
// as given; no deduplication happens here.
type Sequence struct {
	Type  SeqType
	Items []Value
}

// Ext carries a value for an extension codec registered under
// (Codec, Module).  Value is whatever that codec's encoder accepts and
// its decoder returns.
type Ext struct {
	Codec  string
	Module string
	Value  any
}

func (Text) isValue()     {}
func (Bytes) isValue()    {}
func (Int) isValue()      {}
func (Float) isValue()    {}
func (Complex) isValue()  {}
func (Array) isValue()    {}
func (Sequence) isValue() {}
func (Ext) isValue()      {}

// Of converts common Go values to a Value.  Values that are already a
// Value are returned unchanged.
func Of(v any) (Value, bool) {
	switch x := v.(type) {
	case Value:
		return x, true
	case string:
		return Text(x), true
	case []byte:
		return Bytes(x), true
	case int:
		return Int(x), true
	case int8:
		return Int(x), true
	case int16:
		return Int(x), true
	case int32:
		return Int(x), true
	case int64:
		return Int(x), true
	case uint8:
		return Int(x), true
	case uint16:
		return Int(x), true
	case uint32:
		return Int(x), true
	case float32:
		return Float(x), true
	case float64:
		return Float(x), true
	case complex64:
		return Complex(x), true
	case complex128:
		return Complex(x), true
	case []float64:
		a, err := NewArray([]int{len(x)}, x)
		return a, err == nil
	case []float32:
		a, err := NewArray([]int{len(x)}, x)
		return a, err == nil
	case []int64:
		a, err := NewArray([]int{len(x)}, x)
		return a, err == nil
	case []int32:
		a, err := NewArray([]int{len(x)}, x)
		return a, err == nil
	case []string:
		items := make([]Value, len(x))
		for i, s := range x {
			items[i] = Text(s)
		}
		return Sequence{Type: List, Items: items}, true
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			item, ok := Of(e)
			if !ok {
				return nil, false
			}
			items[i] = item
		}
		return Sequence{Type: List, Items: items}, true
	}
	return nil, false
}

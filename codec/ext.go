// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type funcCodec struct {
	name, module string
	tag          byte
	enc          func(dst []byte, v any) ([]byte, error)
	dec          func(data []byte) (any, error)
}

// Func builds an extension codec from an encode/decode pair.  The codec
// accepts and produces Ext values carrying its name and module.
func Func(name, module string, tag byte, enc func(dst []byte, v any) ([]byte, error), dec func(data []byte) (any, error)) Codec {
	return &funcCodec{name: name, module: module, tag: tag, enc: enc, dec: dec}
}

func (c *funcCodec) Name() string   { return c.name }
func (c *funcCodec) Module() string { return c.module }
func (c *funcCodec) Tag() byte      { return c.tag }

func (c *funcCodec) Encode(dst []byte, v Value) ([]byte, error) {
	ext, ok := v.(Ext)
	if !ok || ext.Codec != c.name || ext.Module != c.module {
		return nil, fmt.Errorf("%s.%s codec: unexpected %#v", c.module, c.name, v)
	}
	return c.enc(dst, ext.Value)
}

func (c *funcCodec) Decode(data []byte) (Value, error) {
	v, err := c.dec(data)
	if err != nil {
		return nil, err
	}
	return Ext{Codec: c.name, Module: c.module, Value: v}, nil
}

const (
	MsgpackName   = "Msgpack"
	MsgpackModule = "msgpack"
	MsgpackTag    = 'm'
)

// Msgpack returns an extension codec storing arbitrary Go values as
// MessagePack.  Map keys are sorted so equal values encode identically.
// Decoded values come back as generic msgpack types (map[string]any,
// []any, int8..int64, and so on).
func Msgpack() Codec {
	return Func(MsgpackName, MsgpackModule, MsgpackTag, encodeMsgpack, decodeMsgpack)
}

// NewMsgpack wraps v for the codec returned by Msgpack.
func NewMsgpack(v any) Ext {
	return Ext{Codec: MsgpackName, Module: MsgpackModule, Value: v}
}

func encodeMsgpack(dst []byte, v any) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

func decodeMsgpack(data []byte) (any, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(data))
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("msgpack decode: %w", err)
	}
	return v, nil
}

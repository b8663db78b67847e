// File: protocol/length_codec.go
// Package protocol implements length-prefix header codecs.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"
	"math"

	"github.com/momentics/hioload-tcp/api"
)

// DefaultHeaderSize is the width of the default length header.
const DefaultHeaderSize = 4

// LengthCodec encodes a payload length as a signed 32-bit integer.
// The default byte order is little-endian.
type LengthCodec struct {
	order binary.ByteOrder
}

var _ api.Codec = (*LengthCodec)(nil)

// CodecOption customizes a LengthCodec.
type CodecOption func(*LengthCodec)

// WithByteOrder selects the header byte order.
func WithByteOrder(order binary.ByteOrder) CodecOption {
	return func(c *LengthCodec) {
		if order != nil {
			c.order = order
		}
	}
}

// NewLengthCodec returns the default 4-byte length codec.
func NewLengthCodec(opts ...CodecOption) *LengthCodec {
	c := &LengthCodec{order: binary.LittleEndian}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HeaderSize implements api.Codec.
func (c *LengthCodec) HeaderSize() int { return DefaultHeaderSize }

// EncodeHeader implements api.Codec. Lengths outside the int32 range are clamped.
func (c *LengthCodec) EncodeHeader(length int) []byte {
	if length > math.MaxInt32 {
		length = math.MaxInt32
	}
	if length < math.MinInt32 {
		length = math.MinInt32
	}
	h := make([]byte, DefaultHeaderSize)
	c.order.PutUint32(h, uint32(int32(length)))
	return h
}

// DecodeHeader implements api.Codec. Short headers decode to 0.
func (c *LengthCodec) DecodeHeader(header []byte) int {
	if len(header) < DefaultHeaderSize {
		return 0
	}
	return int(int32(c.order.Uint32(header)))
}

// Uint16Codec encodes lengths as a big-endian uint16 for small-frame protocols.
type Uint16Codec struct{}

var _ api.Codec = Uint16Codec{}

// NewUint16Codec returns a 2-byte big-endian codec.
func NewUint16Codec() Uint16Codec { return Uint16Codec{} }

func (Uint16Codec) HeaderSize() int { return 2 }

func (Uint16Codec) EncodeHeader(length int) []byte {
	if length < 0 {
		length = 0
	}
	if length > math.MaxUint16 {
		length = math.MaxUint16
	}
	h := make([]byte, 2)
	binary.BigEndian.PutUint16(h, uint16(length))
	return h
}

func (Uint16Codec) DecodeHeader(header []byte) int {
	if len(header) < 2 {
		return 0
	}
	return int(binary.BigEndian.Uint16(header))
}

// Frame returns header||payload encoded with c.
func Frame(c api.Codec, payload []byte) []byte {
	h := c.EncodeHeader(len(payload))
	out := make([]byte, 0, len(h)+len(payload))
	out = append(out, h...)
	return append(out, payload...)
}

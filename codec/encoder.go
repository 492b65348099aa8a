// Package codec implements the canonical byte encoding shared by contracts and the host.
//
// Scalars use fixed-width little-endian encodings, lengths and counts inside structs use
// compact (LEB128-style) integers, and structs are a plain concatenation of their fields
// in declared order with no tags or version markers.
package codec

import (
	"encoding/binary"

	"github.com/govm-net/wasmlib/errors"
)

// Encoder appends canonical encodings to an internal buffer. Encoding cannot fail
// for well-formed input.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an empty encoder
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 128)}
}

// Buf returns the encoded bytes
func (e *Encoder) Buf() []byte {
	return e.buf
}

// Bool encodes a boolean as a single 0/1 byte
func (e *Encoder) Bool(value bool) *Encoder {
	if value {
		return e.Uint8(1)
	}
	return e.Uint8(0)
}

// Bytes encodes a compact length followed by the raw bytes
func (e *Encoder) Bytes(value []byte) *Encoder {
	e.VluEncode(uint64(len(value)))
	e.buf = append(e.buf, value...)
	return e
}

// FixedBytes appends value, which must be exactly length bytes long
func (e *Encoder) FixedBytes(value []byte, length int) *Encoder {
	if len(value) != length {
		errors.Abortf(errors.PhaseEncode, errors.KindInvalidData, "fixed bytes: want %d bytes, got %d", length, len(value))
	}
	e.buf = append(e.buf, value...)
	return e
}

func (e *Encoder) Int8(value int8) *Encoder {
	return e.Uint8(uint8(value))
}

func (e *Encoder) Int16(value int16) *Encoder {
	return e.Uint16(uint16(value))
}

func (e *Encoder) Int32(value int32) *Encoder {
	return e.Uint32(uint32(value))
}

func (e *Encoder) Int64(value int64) *Encoder {
	return e.Uint64(uint64(value))
}

// String encodes a compact length followed by the UTF-8 bytes
func (e *Encoder) String(value string) *Encoder {
	return e.Bytes([]byte(value))
}

func (e *Encoder) Uint8(value uint8) *Encoder {
	e.buf = append(e.buf, value)
	return e
}

func (e *Encoder) Uint16(value uint16) *Encoder {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, value)
	return e
}

func (e *Encoder) Uint32(value uint32) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, value)
	return e
}

func (e *Encoder) Uint64(value uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, value)
	return e
}

// VliEncode encodes a signed integer in compact form.
// The first byte carries the sign in bit 6 and 6 payload bits, every following byte
// carries 7 payload bits. Bit 7 is the continuation flag in all bytes.
func (e *Encoder) VliEncode(value int64) *Encoder {
	b := byte(value) & 0x3f
	value >>= 6

	finalValue := int64(0)
	if value < 0 {
		b |= 0x40
		// arithmetic shift leaves all high bits set once the payload is exhausted
		finalValue = -1
	}

	for value != finalValue {
		e.buf = append(e.buf, b|0x80)
		b = byte(value) & 0x7f
		value >>= 7
	}

	e.buf = append(e.buf, b)
	return e
}

// VluEncode encodes an unsigned integer as unsigned LEB128
func (e *Encoder) VluEncode(value uint64) *Encoder {
	e.buf = binary.AppendUvarint(e.buf, value)
	return e
}

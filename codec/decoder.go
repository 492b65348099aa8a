package codec

import (
	"encoding/binary"

	"github.com/govm-net/wasmlib/errors"
)

// Decoder reads canonical encodings from a buffer using an internal read offset.
// Reading past the end of the buffer aborts the call.
type Decoder struct {
	buf []byte
}

// NewDecoder creates a decoder over buf
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Close aborts when unread bytes remain
func (d *Decoder) Close() {
	if len(d.buf) != 0 {
		errors.Abortf(errors.PhaseDecode, errors.KindInvalidData, "extra bytes: %d", len(d.buf))
	}
}

// Remaining returns the number of unread bytes
func (d *Decoder) Remaining() int {
	return len(d.buf)
}

func (d *Decoder) Bool() bool {
	switch d.Uint8() {
	case 0:
		return false
	case 1:
		return true
	default:
		errors.Abortf(errors.PhaseDecode, errors.KindInvalidData, "invalid bool value")
		return false
	}
}

// Byte reads a single raw byte
func (d *Decoder) Byte() byte {
	if len(d.buf) == 0 {
		errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "insufficient bytes")
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

// Bytes reads a compact length followed by that many bytes
func (d *Decoder) Bytes() []byte {
	length := d.VluDecode(32)
	return d.FixedBytes(int(length))
}

// FixedBytes reads exactly size bytes
func (d *Decoder) FixedBytes(size int) []byte {
	if len(d.buf) < size {
		errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "insufficient bytes: want %d, have %d", size, len(d.buf))
	}
	value := make([]byte, size)
	copy(value, d.buf[:size])
	d.buf = d.buf[size:]
	return value
}

func (d *Decoder) Int8() int8 {
	return int8(d.Uint8())
}

func (d *Decoder) Int16() int16 {
	return int16(d.Uint16())
}

func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

func (d *Decoder) Int64() int64 {
	return int64(d.Uint64())
}

// String reads a compact length followed by UTF-8 bytes
func (d *Decoder) String() string {
	return StringFromBytes(d.Bytes())
}

func (d *Decoder) Uint8() uint8 {
	return d.Byte()
}

func (d *Decoder) Uint16() uint16 {
	return binary.LittleEndian.Uint16(d.FixedBytes(2))
}

func (d *Decoder) Uint32() uint32 {
	return binary.LittleEndian.Uint32(d.FixedBytes(4))
}

func (d *Decoder) Uint64() uint64 {
	return binary.LittleEndian.Uint64(d.FixedBytes(8))
}

// VliDecode decodes a compact signed integer that must fit in bits
func (d *Decoder) VliDecode(bits int) int64 {
	b := d.Byte()
	sign := b & 0x40

	value := uint64(b & 0x3f)
	s := uint(6)
	for b&0x80 != 0 {
		if s >= 64 {
			errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "compact signed integer overflow")
		}
		b = d.Byte()
		value |= uint64(b&0x7f) << s
		s += 7
	}

	if sign != 0 && s < 64 {
		value |= ^uint64(0) << s
	}

	result := int64(value)
	if bits < 64 {
		limit := int64(1) << (bits - 1)
		if result < -limit || result >= limit {
			errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "compact signed integer exceeds %d bits", bits)
		}
	}
	return result
}

// VluDecode decodes a compact unsigned integer that must fit in bits
func (d *Decoder) VluDecode(bits int) uint64 {
	value, n := binary.Uvarint(d.buf)
	if n == 0 {
		errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "insufficient bytes")
	}
	if n < 0 {
		errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "compact unsigned integer overflow")
	}
	if bits < 64 && value>>bits != 0 {
		errors.Abortf(errors.PhaseDecode, errors.KindOutOfBounds, "compact unsigned integer exceeds %d bits", bits)
	}
	d.buf = d.buf[n:]
	return value
}

package codec

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/govm-net/wasmlib/errors"
	"golang.org/x/text/encoding/unicode"
)

// Top-level value conversions. These are the encodings stored in host state slots.
// A zero-length buffer always decodes to the zero value; any other length must match
// the exact width of the type.

func checkSize(buf []byte, size int, typeName string) bool {
	if len(buf) == 0 {
		return false
	}
	if len(buf) != size {
		errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(typeName).
			Detail("want %d bytes, got %d", size, len(buf)).
			Abort()
	}
	return true
}

func BoolFromBytes(buf []byte) bool {
	if !checkSize(buf, 1, "bool") {
		return false
	}
	switch buf[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		errors.Abortf(errors.PhaseDecode, errors.KindInvalidData, "invalid bool value")
		return false
	}
}

func BoolToBytes(value bool) []byte {
	if value {
		return []byte{1}
	}
	return []byte{0}
}

// BytesFromBytes returns the raw bytes unchanged
func BytesFromBytes(buf []byte) []byte {
	return buf
}

func BytesToBytes(value []byte) []byte {
	return value
}

func Int8FromBytes(buf []byte) int8 {
	if !checkSize(buf, 1, "int8") {
		return 0
	}
	return int8(buf[0])
}

func Int8ToBytes(value int8) []byte {
	return []byte{byte(value)}
}

func Int16FromBytes(buf []byte) int16 {
	if !checkSize(buf, 2, "int16") {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(buf))
}

func Int16ToBytes(value int16) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(value))
}

func Int32FromBytes(buf []byte) int32 {
	if !checkSize(buf, 4, "int32") {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(buf))
}

func Int32ToBytes(value int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(value))
}

func Int64FromBytes(buf []byte) int64 {
	if !checkSize(buf, 8, "int64") {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(buf))
}

func Int64ToBytes(value int64) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(value))
}

// StringFromBytes decodes UTF-8, replacing invalid sequences with U+FFFD
func StringFromBytes(buf []byte) string {
	if utf8.Valid(buf) {
		return string(buf)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
	}
	return string(out)
}

func StringToBytes(value string) []byte {
	return []byte(value)
}

func Uint8FromBytes(buf []byte) uint8 {
	if !checkSize(buf, 1, "uint8") {
		return 0
	}
	return buf[0]
}

func Uint8ToBytes(value uint8) []byte {
	return []byte{value}
}

func Uint16FromBytes(buf []byte) uint16 {
	if !checkSize(buf, 2, "uint16") {
		return 0
	}
	return binary.LittleEndian.Uint16(buf)
}

func Uint16ToBytes(value uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, value)
}

func Uint32FromBytes(buf []byte) uint32 {
	if !checkSize(buf, 4, "uint32") {
		return 0
	}
	return binary.LittleEndian.Uint32(buf)
}

func Uint32ToBytes(value uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, value)
}

func Uint64FromBytes(buf []byte) uint64 {
	if !checkSize(buf, 8, "uint64") {
		return 0
	}
	return binary.LittleEndian.Uint64(buf)
}

func Uint64ToBytes(value uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, value)
}

// FixedFromBytes validates a fixed-size identifier buffer. A zero-length buffer
// decodes to an all-zero identifier.
func FixedFromBytes(buf []byte, size int, typeName string) []byte {
	if !checkSize(buf, size, typeName) {
		return make([]byte, size)
	}
	out := make([]byte, size)
	copy(out, buf)
	return out
}

// Marshaler is implemented by struct records that encode their fields in declared order
type Marshaler interface {
	Encode(enc *Encoder)
}

// StructToBytes encodes a struct record
func StructToBytes(value Marshaler) []byte {
	enc := NewEncoder()
	value.Encode(enc)
	return enc.Buf()
}

// StructFromBytes decodes a struct record with decode and aborts when bytes remain.
// Like scalars, a zero-length buffer yields the zero value.
func StructFromBytes[T any](buf []byte, decode func(dec *Decoder) T) T {
	if len(buf) == 0 {
		var zero T
		return zero
	}
	dec := NewDecoder(buf)
	value := decode(dec)
	dec.Close()
	return value
}

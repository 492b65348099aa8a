package core

import (
	"encoding/hex"
	"strconv"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/types"
)

// Codec binds a Go type to its type tag and top-level byte encoding
type Codec[T any] struct {
	TypeID types.TypeID
	Decode func(buf []byte) T
	Encode func(value T) []byte
	Format func(value T) string
}

func formatInt[T int8 | int16 | int32 | int64](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func formatUint[T uint8 | uint16 | uint32 | uint64](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}

var (
	AddressCodec   = Codec[ScAddress]{types.TypeAddress, AddressFromBytes, ScAddress.Bytes, ScAddress.String}
	AgentIDCodec   = Codec[ScAgentID]{types.TypeAgentID, AgentIDFromBytes, ScAgentID.Bytes, ScAgentID.String}
	BoolCodec      = Codec[bool]{types.TypeBool, codec.BoolFromBytes, codec.BoolToBytes, strconv.FormatBool}
	BytesCodec     = Codec[[]byte]{types.TypeBytes, codec.BytesFromBytes, codec.BytesToBytes, hex.EncodeToString}
	ChainIDCodec   = Codec[ScChainID]{types.TypeChainID, ChainIDFromBytes, ScChainID.Bytes, ScChainID.String}
	HashCodec      = Codec[ScHash]{types.TypeHash, HashFromBytes, ScHash.Bytes, ScHash.String}
	HnameCodec     = Codec[Hname]{types.TypeHname, HnameFromBytes, Hname.Bytes, Hname.String}
	Int8Codec      = Codec[int8]{types.TypeInt8, codec.Int8FromBytes, codec.Int8ToBytes, formatInt[int8]}
	Int16Codec     = Codec[int16]{types.TypeInt16, codec.Int16FromBytes, codec.Int16ToBytes, formatInt[int16]}
	Int32Codec     = Codec[int32]{types.TypeInt32, codec.Int32FromBytes, codec.Int32ToBytes, formatInt[int32]}
	Int64Codec     = Codec[int64]{types.TypeInt64, codec.Int64FromBytes, codec.Int64ToBytes, formatInt[int64]}
	RequestIDCodec = Codec[ScRequestID]{types.TypeRequestID, RequestIDFromBytes, ScRequestID.Bytes, ScRequestID.String}
	StringCodec    = Codec[string]{types.TypeString, codec.StringFromBytes, codec.StringToBytes, func(s string) string { return s }}
	Uint8Codec     = Codec[uint8]{types.TypeUint8, codec.Uint8FromBytes, codec.Uint8ToBytes, formatUint[uint8]}
	Uint16Codec    = Codec[uint16]{types.TypeUint16, codec.Uint16FromBytes, codec.Uint16ToBytes, formatUint[uint16]}
	Uint32Codec    = Codec[uint32]{types.TypeUint32, codec.Uint32FromBytes, codec.Uint32ToBytes, formatUint[uint32]}
	Uint64Codec    = Codec[uint64]{types.TypeUint64, codec.Uint64FromBytes, codec.Uint64ToBytes, formatUint[uint64]}
)

// StructCodec stores a struct record as bytes
func StructCodec[T codec.Marshaler](decode func(dec *codec.Decoder) T) Codec[T] {
	return Codec[T]{
		TypeID: types.TypeBytes,
		Decode: func(buf []byte) T { return codec.StructFromBytes(buf, decode) },
		Encode: func(value T) []byte { return codec.StructToBytes(value) },
		Format: func(value T) string { return hex.EncodeToString(codec.StructToBytes(value)) },
	}
}

// ScImmutable is a read-only typed view of one value slot.
//
// Value on a slot that does not exist returns the zero value of T. Callers that need
// to tell absence from a stored zero must check Exists first.
type ScImmutable[T any] struct {
	proxy ValueProxy
	codec Codec[T]
}

// NewScImmutable wraps the value slot addressed by proxy
func NewScImmutable[T any](proxy ValueProxy, c Codec[T]) ScImmutable[T] {
	return ScImmutable[T]{proxy: proxy, codec: c}
}

func (v ScImmutable[T]) Exists() bool {
	return v.proxy.Exists()
}

func (v ScImmutable[T]) Value() T {
	return v.codec.Decode(v.proxy.Get())
}

func (v ScImmutable[T]) String() string {
	return v.codec.Format(v.Value())
}

// ScMutable adds write access to ScImmutable
type ScMutable[T any] struct {
	ScImmutable[T]
}

// NewScMutable wraps the value slot addressed by proxy
func NewScMutable[T any](proxy ValueProxy, c Codec[T]) ScMutable[T] {
	return ScMutable[T]{ScImmutable: NewScImmutable(proxy, c)}
}

func (v ScMutable[T]) SetValue(value T) {
	v.proxy.Set(v.codec.Encode(value))
}

func (v ScMutable[T]) Delete() {
	v.proxy.Delete()
}

// Immutable returns a read-only view of the same slot
func (v ScMutable[T]) Immutable() ScImmutable[T] {
	return v.ScImmutable
}

type (
	ScImmutableAddress   = ScImmutable[ScAddress]
	ScImmutableAgentID   = ScImmutable[ScAgentID]
	ScImmutableBool      = ScImmutable[bool]
	ScImmutableBytes     = ScImmutable[[]byte]
	ScImmutableChainID   = ScImmutable[ScChainID]
	ScImmutableHash      = ScImmutable[ScHash]
	ScImmutableHname     = ScImmutable[Hname]
	ScImmutableInt8      = ScImmutable[int8]
	ScImmutableInt16     = ScImmutable[int16]
	ScImmutableInt32     = ScImmutable[int32]
	ScImmutableInt64     = ScImmutable[int64]
	ScImmutableRequestID = ScImmutable[ScRequestID]
	ScImmutableString    = ScImmutable[string]
	ScImmutableUint8     = ScImmutable[uint8]
	ScImmutableUint16    = ScImmutable[uint16]
	ScImmutableUint32    = ScImmutable[uint32]
	ScImmutableUint64    = ScImmutable[uint64]

	ScMutableAddress   = ScMutable[ScAddress]
	ScMutableAgentID   = ScMutable[ScAgentID]
	ScMutableBool      = ScMutable[bool]
	ScMutableBytes     = ScMutable[[]byte]
	ScMutableChainID   = ScMutable[ScChainID]
	ScMutableHash      = ScMutable[ScHash]
	ScMutableHname     = ScMutable[Hname]
	ScMutableInt8      = ScMutable[int8]
	ScMutableInt16     = ScMutable[int16]
	ScMutableInt32     = ScMutable[int32]
	ScMutableInt64     = ScMutable[int64]
	ScMutableRequestID = ScMutable[ScRequestID]
	ScMutableString    = ScMutable[string]
	ScMutableUint8     = ScMutable[uint8]
	ScMutableUint16    = ScMutable[uint16]
	ScMutableUint32    = ScMutable[uint32]
	ScMutableUint64    = ScMutable[uint64]
)

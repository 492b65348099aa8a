package core

import (
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// ScImmutableMap is a read-only view of a host map
type ScImmutableMap struct {
	obj ObjectProxy
}

// NewScImmutableMap wraps the map container obj
func NewScImmutableMap(obj ObjectProxy) ScImmutableMap {
	return ScImmutableMap{obj: obj}
}

func (m ScImmutableMap) Object() ObjectProxy {
	return m.obj
}

// ImmutableField returns a read-only typed value stored in m under key
func ImmutableField[T any](m ScImmutableMap, key MapKey, c Codec[T]) ScImmutable[T] {
	return NewScImmutable(m.obj.Value(m.obj.keyID(key), c.TypeID), c)
}

// ImmutableArray returns a read-only typed array stored in m under key
func ImmutableArray[T any](m ScImmutableMap, key MapKey, c Codec[T]) ScImmutableArray[T] {
	return ScImmutableArray[T]{obj: m.obj.Child(m.obj.keyID(key), types.TypeArray|c.TypeID), codec: c}
}

func (m ScImmutableMap) GetAddress(key MapKey) ScImmutableAddress {
	return ImmutableField(m, key, AddressCodec)
}

func (m ScImmutableMap) GetAgentID(key MapKey) ScImmutableAgentID {
	return ImmutableField(m, key, AgentIDCodec)
}

func (m ScImmutableMap) GetBool(key MapKey) ScImmutableBool {
	return ImmutableField(m, key, BoolCodec)
}

func (m ScImmutableMap) GetBytes(key MapKey) ScImmutableBytes {
	return ImmutableField(m, key, BytesCodec)
}

func (m ScImmutableMap) GetChainID(key MapKey) ScImmutableChainID {
	return ImmutableField(m, key, ChainIDCodec)
}

func (m ScImmutableMap) GetHash(key MapKey) ScImmutableHash {
	return ImmutableField(m, key, HashCodec)
}

func (m ScImmutableMap) GetHname(key MapKey) ScImmutableHname {
	return ImmutableField(m, key, HnameCodec)
}

func (m ScImmutableMap) GetInt8(key MapKey) ScImmutableInt8 {
	return ImmutableField(m, key, Int8Codec)
}

func (m ScImmutableMap) GetInt16(key MapKey) ScImmutableInt16 {
	return ImmutableField(m, key, Int16Codec)
}

func (m ScImmutableMap) GetInt32(key MapKey) ScImmutableInt32 {
	return ImmutableField(m, key, Int32Codec)
}

func (m ScImmutableMap) GetInt64(key MapKey) ScImmutableInt64 {
	return ImmutableField(m, key, Int64Codec)
}

func (m ScImmutableMap) GetRequestID(key MapKey) ScImmutableRequestID {
	return ImmutableField(m, key, RequestIDCodec)
}

func (m ScImmutableMap) GetString(key MapKey) ScImmutableString {
	return ImmutableField(m, key, StringCodec)
}

func (m ScImmutableMap) GetUint8(key MapKey) ScImmutableUint8 {
	return ImmutableField(m, key, Uint8Codec)
}

func (m ScImmutableMap) GetUint16(key MapKey) ScImmutableUint16 {
	return ImmutableField(m, key, Uint16Codec)
}

func (m ScImmutableMap) GetUint32(key MapKey) ScImmutableUint32 {
	return ImmutableField(m, key, Uint32Codec)
}

func (m ScImmutableMap) GetUint64(key MapKey) ScImmutableUint64 {
	return ImmutableField(m, key, Uint64Codec)
}

func (m ScImmutableMap) GetMap(key MapKey) ScImmutableMap {
	return ScImmutableMap{obj: m.obj.Child(m.obj.keyID(key), types.TypeMap)}
}

func (m ScImmutableMap) GetMapArray(key MapKey) ScImmutableMapArray {
	return ScImmutableMapArray{obj: m.obj.Child(m.obj.keyID(key), types.TypeArray|types.TypeMap)}
}

// ReadDict collects the raw bytes stored under keys into a dict. Missing keys are skipped.
func (m ScImmutableMap) ReadDict(keys ...string) *dict.Dict {
	d := dict.New()
	for _, key := range keys {
		v := m.obj.Value(m.obj.mod.keys.Intern(key), types.TypeBytes)
		if !v.Exists() {
			continue
		}
		d.SetString(key, v.Get())
	}
	return d
}

// ScMutableMap is a writable view of a host map
type ScMutableMap struct {
	obj ObjectProxy
}

// NewScMutableMap wraps the map container obj
func NewScMutableMap(obj ObjectProxy) ScMutableMap {
	return ScMutableMap{obj: obj}
}

func (m ScMutableMap) Object() ObjectProxy {
	return m.obj
}

func (m ScMutableMap) Immutable() ScImmutableMap {
	return ScImmutableMap{obj: m.obj}
}

// MutableField returns a typed value stored in m under key
func MutableField[T any](m ScMutableMap, key MapKey, c Codec[T]) ScMutable[T] {
	return NewScMutable(m.obj.Value(m.obj.keyID(key), c.TypeID), c)
}

// MutableArray returns a typed array stored in m under key
func MutableArray[T any](m ScMutableMap, key MapKey, c Codec[T]) ScMutableArray[T] {
	return ScMutableArray[T]{ScImmutableArray[T]{obj: m.obj.Child(m.obj.keyID(key), types.TypeArray|c.TypeID), codec: c}}
}

func (m ScMutableMap) GetAddress(key MapKey) ScMutableAddress {
	return MutableField(m, key, AddressCodec)
}

func (m ScMutableMap) GetAgentID(key MapKey) ScMutableAgentID {
	return MutableField(m, key, AgentIDCodec)
}

func (m ScMutableMap) GetBool(key MapKey) ScMutableBool {
	return MutableField(m, key, BoolCodec)
}

func (m ScMutableMap) GetBytes(key MapKey) ScMutableBytes {
	return MutableField(m, key, BytesCodec)
}

func (m ScMutableMap) GetChainID(key MapKey) ScMutableChainID {
	return MutableField(m, key, ChainIDCodec)
}

func (m ScMutableMap) GetHash(key MapKey) ScMutableHash {
	return MutableField(m, key, HashCodec)
}

func (m ScMutableMap) GetHname(key MapKey) ScMutableHname {
	return MutableField(m, key, HnameCodec)
}

func (m ScMutableMap) GetInt8(key MapKey) ScMutableInt8 {
	return MutableField(m, key, Int8Codec)
}

func (m ScMutableMap) GetInt16(key MapKey) ScMutableInt16 {
	return MutableField(m, key, Int16Codec)
}

func (m ScMutableMap) GetInt32(key MapKey) ScMutableInt32 {
	return MutableField(m, key, Int32Codec)
}

func (m ScMutableMap) GetInt64(key MapKey) ScMutableInt64 {
	return MutableField(m, key, Int64Codec)
}

func (m ScMutableMap) GetRequestID(key MapKey) ScMutableRequestID {
	return MutableField(m, key, RequestIDCodec)
}

func (m ScMutableMap) GetString(key MapKey) ScMutableString {
	return MutableField(m, key, StringCodec)
}

func (m ScMutableMap) GetUint8(key MapKey) ScMutableUint8 {
	return MutableField(m, key, Uint8Codec)
}

func (m ScMutableMap) GetUint16(key MapKey) ScMutableUint16 {
	return MutableField(m, key, Uint16Codec)
}

func (m ScMutableMap) GetUint32(key MapKey) ScMutableUint32 {
	return MutableField(m, key, Uint32Codec)
}

func (m ScMutableMap) GetUint64(key MapKey) ScMutableUint64 {
	return MutableField(m, key, Uint64Codec)
}

func (m ScMutableMap) GetMap(key MapKey) ScMutableMap {
	return ScMutableMap{obj: m.obj.Child(m.obj.keyID(key), types.TypeMap)}
}

func (m ScMutableMap) GetMapArray(key MapKey) ScMutableMapArray {
	return ScMutableMapArray{obj: m.obj.Child(m.obj.keyID(key), types.TypeArray|types.TypeMap)}
}

// WriteDict stores every entry of d as raw bytes, interning the keys
func (m ScMutableMap) WriteDict(d *dict.Dict) {
	d.Each(func(key, value []byte) bool {
		m.obj.Value(m.obj.mod.keys.InternBytes(key), types.TypeBytes).Set(value)
		return true
	})
}

// ScImmutableArray is a read-only view of a typed array
type ScImmutableArray[T any] struct {
	obj   ObjectProxy
	codec Codec[T]
}

func (a ScImmutableArray[T]) Length() int32 {
	return a.obj.Length()
}

// Get returns the element at index, which must be below Length
func (a ScImmutableArray[T]) Get(index int32) ScImmutable[T] {
	checkIndex(index, a.obj.Length())
	return NewScImmutable(a.obj.Value(types.Key32(index), a.codec.TypeID), a.codec)
}

// ScMutableArray adds write access to ScImmutableArray
type ScMutableArray[T any] struct {
	ScImmutableArray[T]
}

// Get returns the element at index. Setting the value at index == Length appends.
func (a ScMutableArray[T]) Get(index int32) ScMutable[T] {
	checkIndex(index, a.obj.Length()+1)
	return NewScMutable(a.obj.Value(types.Key32(index), a.codec.TypeID), a.codec)
}

// Append stores value at the end of the array, growing it by one
func (a ScMutableArray[T]) Append(value T) {
	a.obj.Value(types.Key32(a.obj.Length()), a.codec.TypeID).Set(a.codec.Encode(value))
}

// Clear empties the array
func (a ScMutableArray[T]) Clear() {
	a.obj.Clear()
}

func (a ScMutableArray[T]) Immutable() ScImmutableArray[T] {
	return a.ScImmutableArray
}

type (
	ScImmutableAddressArray = ScImmutableArray[ScAddress]
	ScImmutableAgentIDArray = ScImmutableArray[ScAgentID]
	ScImmutableBytesArray   = ScImmutableArray[[]byte]
	ScImmutableHashArray    = ScImmutableArray[ScHash]
	ScImmutableInt64Array   = ScImmutableArray[int64]
	ScImmutableStringArray  = ScImmutableArray[string]

	ScMutableAddressArray = ScMutableArray[ScAddress]
	ScMutableAgentIDArray = ScMutableArray[ScAgentID]
	ScMutableBytesArray   = ScMutableArray[[]byte]
	ScMutableHashArray    = ScMutableArray[ScHash]
	ScMutableInt64Array   = ScMutableArray[int64]
	ScMutableStringArray  = ScMutableArray[string]
)

// ScImmutableMapArray is a read-only array of maps
type ScImmutableMapArray struct {
	obj ObjectProxy
}

func (a ScImmutableMapArray) Length() int32 {
	return a.obj.Length()
}

func (a ScImmutableMapArray) GetMap(index int32) ScImmutableMap {
	checkIndex(index, a.obj.Length())
	return ScImmutableMap{obj: a.obj.Child(types.Key32(index), types.TypeMap)}
}

// ScMutableMapArray is an array of maps
type ScMutableMapArray struct {
	obj ObjectProxy
}

func (a ScMutableMapArray) Length() int32 {
	return a.obj.Length()
}

// GetMap returns the map at index. Index == Length creates a new element.
func (a ScMutableMapArray) GetMap(index int32) ScMutableMap {
	checkIndex(index, a.obj.Length()+1)
	return ScMutableMap{obj: a.obj.Child(types.Key32(index), types.TypeMap)}
}

// AppendMap adds an empty map at the end of the array
func (a ScMutableMapArray) AppendMap() ScMutableMap {
	return a.GetMap(a.obj.Length())
}

func (a ScMutableMapArray) Clear() {
	a.obj.Clear()
}

func (a ScMutableMapArray) Immutable() ScImmutableMapArray {
	return ScImmutableMapArray{obj: a.obj}
}

func checkIndex(index, limit int32) {
	if index < 0 || index >= limit {
		errors.New(errors.PhaseProxy, errors.KindOutOfBounds).
			Detail("index %d out of range [0, %d)", index, limit).
			Abort()
	}
}

package core

import (
	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// Module is the per-instance context of a contract: its host connection and key space.
// Everything a contract touches is reached through a Module, so there is no
// package-level state and several modules can coexist in one process.
type Module struct {
	host Host
	keys *KeySpace
}

// NewModule creates a module context bound to host
func NewModule(host Host) *Module {
	return &Module{host: host, keys: NewKeySpace(host)}
}

func (m *Module) Host() Host {
	return m.host
}

func (m *Module) Keys() *KeySpace {
	return m.keys
}

// Root returns the proxy for the root object
func (m *Module) Root() ObjectProxy {
	return ObjectProxy{mod: m, id: types.ObjectIDRoot}
}

// ObjectProxy is a handle to a host container. It owns nothing; copying it is free.
type ObjectProxy struct {
	mod *Module
	id  types.ObjectID
}

func (o ObjectProxy) ID() types.ObjectID {
	return o.id
}

func (o ObjectProxy) Module() *Module {
	return o.mod
}

// Child resolves the container stored under key. The host returns the same id for the
// same (parent, key) every time and creates the container on first use.
func (o ObjectProxy) Child(keyID types.Key32, typeID types.TypeID) ObjectProxy {
	if !typeID.IsContainer() {
		errors.New(errors.PhaseProxy, errors.KindTypeMismatch).
			Detail("type %d is not a container", typeID).
			Abort()
	}
	return ObjectProxy{mod: o.mod, id: o.mod.host.GetObjectID(o.id, keyID, typeID)}
}

// Value returns the handle of the value slot (o, key, typeID)
func (o ObjectProxy) Value(keyID types.Key32, typeID types.TypeID) ValueProxy {
	return ValueProxy{host: o.mod.host, obj: o.id, key: keyID, typeID: typeID}
}

func (o ObjectProxy) keyID(key MapKey) types.Key32 {
	return key.KeyID(o.mod.keys)
}

// Length returns the element count of an array container
func (o ObjectProxy) Length() int32 {
	return codec.Int32FromBytes(o.mod.host.GetBytes(o.id, types.KeyLength, types.TypeInt32))
}

// Clear empties the container. This cannot be undone.
func (o ObjectProxy) Clear() {
	o.mod.host.SetBytes(o.id, types.KeyLength, types.TypeInt32, codec.Int32ToBytes(0))
}

// ValueProxy addresses a single value slot
type ValueProxy struct {
	host   Host
	obj    types.ObjectID
	key    types.Key32
	typeID types.TypeID
}

func (v ValueProxy) Exists() bool {
	return v.host.Exists(v.obj, v.key, v.typeID)
}

// Get returns the stored bytes, or nil when the slot does not exist
func (v ValueProxy) Get() []byte {
	return v.host.GetBytes(v.obj, v.key, v.typeID)
}

func (v ValueProxy) Set(value []byte) {
	v.host.SetBytes(v.obj, v.key, v.typeID, value)
}

func (v ValueProxy) Delete() {
	v.host.DelKey(v.obj, v.key, v.typeID)
}

func (v ValueProxy) TypeID() types.TypeID {
	return v.typeID
}

package core

import (
	stderrors "errors"

	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// Host is the narrow boundary between contract code and the host state store.
// Implementations never return errors: a failure aborts the in-flight call.
type Host interface {
	GetKeyID(key []byte) types.Key32
	GetObjectID(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) types.ObjectID
	// GetBytes returns nil when the slot does not exist
	GetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) []byte
	Exists(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) bool
	SetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID, value []byte)
	DelKey(objID types.ObjectID, keyID types.Key32, typeID types.TypeID)
}

// LocalHost runs contract code in-process against a host state store.
// It is what tests and native (non-wasm) contracts use.
type LocalHost struct {
	store types.StateStore
}

// NewLocalHost wraps store
func NewLocalHost(store types.StateStore) *LocalHost {
	return &LocalHost{store: store}
}

func (h *LocalHost) GetKeyID(key []byte) types.Key32 {
	id, err := h.store.KeyID(key)
	abortOnError(err, "key id")
	return id
}

func (h *LocalHost) GetObjectID(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) types.ObjectID {
	id, err := h.store.ObjectID(objID, keyID, typeID)
	abortOnError(err, "object id")
	return id
}

func (h *LocalHost) GetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) []byte {
	value, exists, err := h.store.GetBytes(objID, keyID, typeID)
	abortOnError(err, "get")
	if !exists {
		return nil
	}
	if value == nil {
		value = []byte{}
	}
	return value
}

func (h *LocalHost) Exists(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) bool {
	_, exists, err := h.store.GetBytes(objID, keyID, typeID)
	abortOnError(err, "exists")
	return exists
}

func (h *LocalHost) SetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID, value []byte) {
	abortOnError(h.store.SetBytes(objID, keyID, typeID, value), "set")
}

func (h *LocalHost) DelKey(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) {
	abortOnError(h.store.DelKey(objID, keyID, typeID), "delete")
}

func abortOnError(err error, op string) {
	if err == nil {
		return
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		errors.Abort(e)
	}
	errors.New(errors.PhaseHost, errors.KindInvalidData).Path(op).Cause(err).Abort()
}

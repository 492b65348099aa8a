// Package context implements the host side of the contract state ABI.
//
// A State enforces the store semantics (type tags, array growth, predefined keys,
// call bookkeeping) on top of a Backend, which only persists raw keys, objects and
// slots. Backends register themselves with the package registry from their init
// functions, the same way database drivers do.
package context

import (
	"github.com/govm-net/wasmlib/types"
)

// TypeUntyped marks a slot loaded from a dict. Any typed read of the right size is
// accepted and the first typed write fixes its type.
const TypeUntyped types.TypeID = 0

// Slot is one stored value of an object
type Slot struct {
	Key    types.Key32
	TypeID types.TypeID
	Value  []byte
}

// Event is a message emitted by a contract call
type Event struct {
	Contract  string
	Text      string
	Timestamp int64
}

// Backend persists the raw state of one contract.
//
// The root object (types.ObjectIDRoot) always exists and is a map.
type Backend interface {
	// KeyID returns the id previously stored for name
	KeyID(name []byte) (types.Key32, bool, error)
	// KeyName returns the name stored for id
	KeyName(id types.Key32) ([]byte, bool, error)
	// KeyCount returns the number of interned keys
	KeyCount() (int, error)
	// PutKey stores a new name/id pair
	PutKey(name []byte, id types.Key32) error

	// Object returns the container type of id
	Object(id types.ObjectID) (types.TypeID, bool, error)
	// Child returns the container stored under key in parent
	Child(parent types.ObjectID, key types.Key32) (types.ObjectID, bool, error)
	// CreateChild allocates a new container under key in parent
	CreateChild(parent types.ObjectID, key types.Key32, typeID types.TypeID) (types.ObjectID, error)

	// Slot returns the value stored under key in obj
	Slot(obj types.ObjectID, key types.Key32) (Slot, bool, error)
	// PutSlot creates or overwrites a slot. Overwriting keeps the slot's position.
	PutSlot(obj types.ObjectID, slot Slot) error
	// DeleteSlot removes a slot, absent slots are ignored
	DeleteSlot(obj types.ObjectID, key types.Key32) error
	// Slots lists the slots of obj in creation order
	Slots(obj types.ObjectID) ([]Slot, error)
	// Clear removes all slots and child containers of obj, recursively
	Clear(obj types.ObjectID) error

	// AddEvent records an event
	AddEvent(event Event) error
	// Events lists recorded events in order
	Events() ([]Event, error)

	Close() error
}

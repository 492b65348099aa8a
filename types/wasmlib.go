// Package types contains shared type definitions and constants
// used by both the host environment and WebAssembly contracts
package types

// Key32 identifies a slot inside a host object.
// Non-negative values are raw array indices, negative values are interned strings.
type Key32 int32

// ObjectID identifies a container (map or array) held by the host
type ObjectID int32

// TypeID tags the kind of value stored in a slot.
// A container of values has the TypeArray flag set on its element type.
type TypeID int32

// Object IDs with a fixed meaning
const (
	ObjectIDNull ObjectID = 0
	ObjectIDRoot ObjectID = 1
)

// Type tags
//
// IMPORTANT: these values are part of the host ABI. Host and contract must agree on them,
// so always import them from this package instead of redefining them.
const (
	TypeAddress   TypeID = iota + 1 // 1
	TypeAgentID                     // 2
	TypeBool                        // 3
	TypeBytes                       // 4
	TypeChainID                     // 5
	TypeHash                        // 6
	TypeHname                       // 7
	TypeInt8                        // 8
	TypeInt16                       // 9
	TypeInt32                       // 10
	TypeInt64                       // 11
	TypeMap                         // 12
	TypeRequestID                   // 13
	TypeString                      // 14
	TypeUint8                       // 15
	TypeUint16                      // 16
	TypeUint32                      // 17
	TypeUint64                      // 18

	// TypeArray is a flag combined with the element type of an array container
	TypeArray TypeID = 0x20
)

// Fixed encoded sizes of identifier types
const (
	AddressLength   = 33
	AgentIDLength   = 37
	ChainIDLength   = 33
	HashLength      = 32
	HnameLength     = 4
	RequestIDLength = 34
)

// TypeSizes holds the exact encoded size per type tag, 0 means variable length
var TypeSizes = map[TypeID]int{
	TypeAddress:   AddressLength,
	TypeAgentID:   AgentIDLength,
	TypeBool:      1,
	TypeBytes:     0,
	TypeChainID:   ChainIDLength,
	TypeHash:      HashLength,
	TypeHname:     HnameLength,
	TypeInt8:      1,
	TypeInt16:     2,
	TypeInt32:     4,
	TypeInt64:     8,
	TypeMap:       0,
	TypeRequestID: RequestIDLength,
	TypeString:    0,
	TypeUint8:     1,
	TypeUint16:    2,
	TypeUint32:    4,
	TypeUint64:    8,
}

// IsArray reports whether the type tag describes an array container
func (t TypeID) IsArray() bool {
	return t&TypeArray != 0
}

// ElemType strips the array flag
func (t TypeID) ElemType() TypeID {
	return t &^ TypeArray
}

// IsContainer reports whether the type tag addresses an object rather than a value
func (t TypeID) IsContainer() bool {
	return t == TypeMap || t.IsArray()
}

// Predefined keys. These are fixed at build time and are never looked up dynamically.
// Interned strings receive ids below KeyZzzzzzz.
const (
	KeyCaller    Key32 = -1
	KeyCall      Key32 = -2
	KeyChainID   Key32 = -3
	KeyContract  Key32 = -4
	KeyEvent     Key32 = -5
	KeyExports   Key32 = -6
	KeyLength    Key32 = -7
	KeyLog       Key32 = -8
	KeyMaps      Key32 = -9
	KeyPanic     Key32 = -10
	KeyParams    Key32 = -11
	KeyResults   Key32 = -12
	KeyReturn    Key32 = -13
	KeyState     Key32 = -14
	KeyTimestamp Key32 = -15
	KeyTrace     Key32 = -16

	// KeyZzzzzzz is always the last predefined key.
	// Contracts report it at load time so the host can detect a library version mismatch.
	KeyZzzzzzz Key32 = -17
)

// PredefinedKeyNames maps the textual name of every predefined key to its id
var PredefinedKeyNames = map[string]Key32{
	"caller":    KeyCaller,
	"call":      KeyCall,
	"chainID":   KeyChainID,
	"contract":  KeyContract,
	"event":     KeyEvent,
	"exports":   KeyExports,
	"length":    KeyLength,
	"log":       KeyLog,
	"maps":      KeyMaps,
	"panic":     KeyPanic,
	"params":    KeyParams,
	"results":   KeyResults,
	"return":    KeyReturn,
	"state":     KeyState,
	"timestamp": KeyTimestamp,
	"trace":     KeyTrace,
	"zzzzzzz":   KeyZzzzzzz,
}

// SentinelName is the name written for KeyZzzzzzz in the exports container
const SentinelName = "zzzzzzz"

// ExportViewFlag marks a view in the exports container and in dispatch indices
const ExportViewFlag int32 = 0x8000

// Host ABI names
const (
	// HostModuleName is the import module the contract links against
	HostModuleName = "WasmLib"

	FuncHostGetBytes    = "hostGetBytes"
	FuncHostGetKeyID    = "hostGetKeyID"
	FuncHostGetObjectID = "hostGetObjectID"
	FuncHostSetBytes    = "hostSetBytes"

	// Contract exports
	ExportOnLoad = "on_load"
	ExportOnCall = "on_call_entrypoint"
	ExportMemory = "memory"
)

// StateStore is the host side of the ABI.
// Every call the contract makes across the boundary lands on one of these methods.
type StateStore interface {
	// KeyID interns a key and returns its id
	KeyID(key []byte) (Key32, error)
	// ObjectID resolves (and lazily creates) the child container stored under key
	ObjectID(objID ObjectID, keyID Key32, typeID TypeID) (ObjectID, error)
	// GetBytes returns the value stored in a slot and whether it exists
	GetBytes(objID ObjectID, keyID Key32, typeID TypeID) ([]byte, bool, error)
	// SetBytes stores a value in a slot
	SetBytes(objID ObjectID, keyID Key32, typeID TypeID, value []byte) error
	// DelKey removes a slot
	DelKey(objID ObjectID, keyID Key32, typeID TypeID) error
}

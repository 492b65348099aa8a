//go:build wasip1

// Package wasmclient links contracts compiled for GOOS=wasip1 against the WasmLib host
// module. Contracts build a core.Module on top of Host inside their on_load export.
package wasmclient

import (
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/types"
)

// Functions provided by the host, see types.HostModuleName

//go:wasmimport WasmLib hostGetBytes
func hostGetBytes(objID, keyID, typeID int32, ptr *byte, size int32) int32

//go:wasmimport WasmLib hostGetKeyID
func hostGetKeyID(keyPtr *byte, size int32) int32

//go:wasmimport WasmLib hostGetObjectID
func hostGetObjectID(objID, keyID, typeID int32) int32

//go:wasmimport WasmLib hostSetBytes
func hostSetBytes(objID, keyID, typeID int32, ptr *byte, size int32)

// Host implements core.Host on top of the imported functions
type Host struct{}

var _ core.Host = Host{}

// NewModule creates the module context of the running contract
func NewModule() *core.Module {
	return core.NewModule(Host{})
}

func data(buf []byte) *byte {
	if len(buf) == 0 {
		return nil
	}
	return &buf[0]
}

func (Host) GetKeyID(key []byte) types.Key32 {
	return types.Key32(hostGetKeyID(data(key), int32(len(key))))
}

func (Host) GetObjectID(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) types.ObjectID {
	return types.ObjectID(hostGetObjectID(int32(objID), int32(keyID), int32(typeID)))
}

// GetBytes asks for the length first and then fetches the value into a buffer of that size
func (Host) GetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) []byte {
	size := hostGetBytes(int32(objID), int32(keyID), int32(typeID), nil, 0)
	if size < 0 {
		return nil
	}
	buf := make([]byte, size)
	if size > 0 {
		hostGetBytes(int32(objID), int32(keyID), int32(typeID), &buf[0], size)
	}
	return buf
}

func (Host) Exists(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) bool {
	return hostGetBytes(int32(objID), int32(keyID), int32(typeID), nil, -1) == 0
}

func (Host) SetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID, value []byte) {
	hostSetBytes(int32(objID), int32(keyID), int32(typeID), data(value), int32(len(value)))
}

// DelKey is encoded as a set with size -1
func (Host) DelKey(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) {
	hostSetBytes(int32(objID), int32(keyID), int32(typeID), nil, -1)
}

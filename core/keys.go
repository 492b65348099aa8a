package core

import (
	"github.com/govm-net/wasmlib/types"
)

// MapKey is anything that can address a slot inside a map
type MapKey interface {
	KeyID(keys *KeySpace) types.Key32
}

// Key is a string key. It is interned on first use.
type Key string

func (k Key) KeyID(keys *KeySpace) types.Key32 {
	return keys.Intern(string(k))
}

// Key32 is an already resolved key: a raw index or one of the predefined keys.
// It bypasses interning.
type Key32 types.Key32

func (k Key32) KeyID(*KeySpace) types.Key32 {
	return types.Key32(k)
}

// KeySpace caches interned key ids for one module instance.
// Every distinct string costs at most one host round trip.
type KeySpace struct {
	host  Host
	cache map[string]types.Key32
}

// NewKeySpace creates an empty key space backed by host
func NewKeySpace(host Host) *KeySpace {
	return &KeySpace{host: host, cache: make(map[string]types.Key32)}
}

// Intern returns the key id for name
func (ks *KeySpace) Intern(name string) types.Key32 {
	if id, ok := ks.cache[name]; ok {
		return id
	}
	id := ks.host.GetKeyID([]byte(name))
	ks.cache[name] = id
	return id
}

// InternBytes returns the key id for a binary key
func (ks *KeySpace) InternBytes(key []byte) types.Key32 {
	if id, ok := ks.cache[string(key)]; ok {
		return id
	}
	id := ks.host.GetKeyID(key)
	ks.cache[string(key)] = id
	return id
}

// Len returns the number of cached keys
func (ks *KeySpace) Len() int {
	return len(ks.cache)
}

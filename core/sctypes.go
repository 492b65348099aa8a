package core

import (
	"encoding/binary"
	"fmt"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/types"
	"github.com/mr-tron/base58"
)

// Fixed-size identifier types. They travel as raw bytes of their exact length and
// print as base58.

type ScAddress [types.AddressLength]byte

func AddressFromBytes(buf []byte) ScAddress {
	var a ScAddress
	copy(a[:], codec.FixedFromBytes(buf, types.AddressLength, "address"))
	return a
}

func (a ScAddress) Bytes() []byte {
	return a[:]
}

func (a ScAddress) String() string {
	return base58.Encode(a[:])
}

// AsAgentID returns the agent id of the address itself (hname 0)
func (a ScAddress) AsAgentID() ScAgentID {
	return NewScAgentID(a, 0)
}

// ScAgentID is an address followed by the hname of a contract on that chain
type ScAgentID [types.AgentIDLength]byte

func NewScAgentID(address ScAddress, hname Hname) ScAgentID {
	var id ScAgentID
	copy(id[:], address[:])
	binary.LittleEndian.PutUint32(id[types.AddressLength:], uint32(hname))
	return id
}

func AgentIDFromBytes(buf []byte) ScAgentID {
	var id ScAgentID
	copy(id[:], codec.FixedFromBytes(buf, types.AgentIDLength, "agent id"))
	return id
}

func (id ScAgentID) Address() ScAddress {
	var a ScAddress
	copy(a[:], id[:types.AddressLength])
	return a
}

func (id ScAgentID) Hname() Hname {
	return HnameFromBytes(id[types.AddressLength:])
}

func (id ScAgentID) Bytes() []byte {
	return id[:]
}

func (id ScAgentID) String() string {
	return base58.Encode(id[:])
}

type ScChainID [types.ChainIDLength]byte

func ChainIDFromBytes(buf []byte) ScChainID {
	var id ScChainID
	copy(id[:], codec.FixedFromBytes(buf, types.ChainIDLength, "chain id"))
	return id
}

func (id ScChainID) Address() ScAddress {
	return ScAddress(id)
}

func (id ScChainID) Bytes() []byte {
	return id[:]
}

func (id ScChainID) String() string {
	return base58.Encode(id[:])
}

type ScHash [types.HashLength]byte

func HashFromBytes(buf []byte) ScHash {
	var h ScHash
	copy(h[:], codec.FixedFromBytes(buf, types.HashLength, "hash"))
	return h
}

func (h ScHash) Bytes() []byte {
	return h[:]
}

func (h ScHash) String() string {
	return base58.Encode(h[:])
}

// ScRequestID is a transaction hash followed by a little-endian output index
type ScRequestID [types.RequestIDLength]byte

func NewScRequestID(txID ScHash, index uint16) ScRequestID {
	var id ScRequestID
	copy(id[:], txID[:])
	binary.LittleEndian.PutUint16(id[types.HashLength:], index)
	return id
}

func RequestIDFromBytes(buf []byte) ScRequestID {
	var id ScRequestID
	copy(id[:], codec.FixedFromBytes(buf, types.RequestIDLength, "request id"))
	return id
}

func (id ScRequestID) TransactionID() ScHash {
	var h ScHash
	copy(h[:], id[:types.HashLength])
	return h
}

func (id ScRequestID) Index() uint16 {
	return binary.LittleEndian.Uint16(id[types.HashLength:])
}

func (id ScRequestID) Bytes() []byte {
	return id[:]
}

func (id ScRequestID) String() string {
	return base58.Encode(id[:])
}

func decodeBase58(s string, size int, typeName string) ([]byte, error) {
	buf, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", typeName, err)
	}
	if len(buf) != size {
		return nil, fmt.Errorf("invalid %s: want %d bytes, got %d", typeName, size, len(buf))
	}
	return buf, nil
}

// AddressFromString parses a base58 address
func AddressFromString(s string) (ScAddress, error) {
	buf, err := decodeBase58(s, types.AddressLength, "address")
	if err != nil {
		return ScAddress{}, err
	}
	return ScAddress(buf), nil
}

// AgentIDFromString parses a base58 agent id
func AgentIDFromString(s string) (ScAgentID, error) {
	buf, err := decodeBase58(s, types.AgentIDLength, "agent id")
	if err != nil {
		return ScAgentID{}, err
	}
	return ScAgentID(buf), nil
}

// ChainIDFromString parses a base58 chain id
func ChainIDFromString(s string) (ScChainID, error) {
	buf, err := decodeBase58(s, types.ChainIDLength, "chain id")
	if err != nil {
		return ScChainID{}, err
	}
	return ScChainID(buf), nil
}

// HashFromString parses a base58 hash
func HashFromString(s string) (ScHash, error) {
	buf, err := decodeBase58(s, types.HashLength, "hash")
	if err != nil {
		return ScHash{}, err
	}
	return ScHash(buf), nil
}

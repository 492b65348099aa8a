package core

import (
	"encoding/binary"
	"fmt"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/types"
	"golang.org/x/crypto/blake2b"
)

// Hname is the 32-bit hashed form of a name. It identifies contracts and entry points.
// A valid Hname is never 0 or 0xFFFFFFFF.
type Hname uint32

// NewHname hashes name with blake2b-256 and takes the first four digest bytes as a
// little-endian integer. When that yields 0 or 0xFFFFFFFF the next four bytes are used.
func NewHname(name string) Hname {
	return hnameFromDigest(blake2b.Sum256([]byte(name)))
}

func hnameFromDigest(digest [32]byte) Hname {
	h := Hname(binary.LittleEndian.Uint32(digest[:4]))
	if h == 0 || h == 0xffffffff {
		h = Hname(binary.LittleEndian.Uint32(digest[4:8]))
	}
	return h
}

// HnameFromBytes decodes a 4-byte little-endian Hname. An empty buffer yields 0.
func HnameFromBytes(buf []byte) Hname {
	return Hname(binary.LittleEndian.Uint32(codec.FixedFromBytes(buf, types.HnameLength, "hname")))
}

func (h Hname) Bytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(h))
}

func (h Hname) String() string {
	return fmt.Sprintf("%08x", uint32(h))
}

// Xor combines two hnames bytewise
func (h Hname) Xor(other Hname) Hname {
	return h ^ other
}

// HashData returns the blake2b-256 digest of data
func HashData(data []byte) ScHash {
	return ScHash(blake2b.Sum256(data))
}

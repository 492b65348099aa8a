// Package dict implements the ordered key/value dictionary used to carry call
// parameters, results and cross-contract requests as a single byte buffer.
package dict

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/govm-net/wasmlib/errors"
)

// MaxKeyLength is the longest key the wire format can carry
const MaxKeyLength = math.MaxUint16

// Dict is an insertion-ordered map with unique byte-string keys.
// Two dicts are equal when they hold the same key/value pairs, regardless of order.
type Dict struct {
	keys  []string
	items map[string][]byte
}

// New creates an empty dict
func New() *Dict {
	return &Dict{items: make(map[string][]byte)}
}

// Get returns the value stored under key, or nil when absent
func (d *Dict) Get(key []byte) []byte {
	return d.items[string(key)]
}

// Exists reports whether key is present
func (d *Dict) Exists(key []byte) bool {
	_, ok := d.items[string(key)]
	return ok
}

// Set stores value under key. Overwriting keeps the key's original position.
// Keys longer than MaxKeyLength abort.
func (d *Dict) Set(key, value []byte) {
	if len(key) > MaxKeyLength {
		errors.Abortf(errors.PhaseEncode, errors.KindOutOfBounds, "dict key too long: %d bytes", len(key))
	}
	k := string(key)
	if _, ok := d.items[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.items[k] = bytes.Clone(value)
}

// SetString is Set with a string key
func (d *Dict) SetString(key string, value []byte) {
	d.Set([]byte(key), value)
}

// GetString is Get with a string key
func (d *Dict) GetString(key string) []byte {
	return d.Get([]byte(key))
}

// Delete removes key. Deleting an absent key is a no-op.
func (d *Dict) Delete(key []byte) {
	k := string(key)
	if _, ok := d.items[k]; !ok {
		return
	}
	delete(d.items, k)
	for i, existing := range d.keys {
		if existing == k {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries
func (d *Dict) Len() int {
	return len(d.keys)
}

// Keys returns the keys in insertion order
func (d *Dict) Keys() [][]byte {
	out := make([][]byte, len(d.keys))
	for i, k := range d.keys {
		out[i] = []byte(k)
	}
	return out
}

// Each calls fn for every entry in insertion order until fn returns false
func (d *Dict) Each(fn func(key, value []byte) bool) {
	for _, k := range d.keys {
		if !fn([]byte(k), d.items[k]) {
			return
		}
	}
}

// Equal compares content only
func (d *Dict) Equal(other *Dict) bool {
	if d.Len() != other.Len() {
		return false
	}
	for k, v := range d.items {
		ov, ok := other.items[k]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (d *Dict) Clone() *Dict {
	out := New()
	for _, k := range d.keys {
		out.keys = append(out.keys, k)
		out.items[k] = bytes.Clone(d.items[k])
	}
	return out
}

// Bytes serializes the dict as repeated (keyLen u16 LE, key, valueLen u32 LE, value)
// records in insertion order. An empty dict serializes to an empty buffer.
func (d *Dict) Bytes() []byte {
	size := 0
	for _, k := range d.keys {
		size += 2 + len(k) + 4 + len(d.items[k])
	}
	buf := make([]byte, 0, size)
	for _, k := range d.keys {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(k)))
		buf = append(buf, k...)
		v := d.items[k]
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

// FromBytes parses a buffer produced by Bytes
func FromBytes(buf []byte) (*Dict, error) {
	d := New()
	for offset := 0; offset < len(buf); {
		if len(buf)-offset < 2 {
			return nil, fmt.Errorf("truncated key length at offset %d", offset)
		}
		keyLen := int(binary.LittleEndian.Uint16(buf[offset:]))
		offset += 2
		if len(buf)-offset < keyLen {
			return nil, fmt.Errorf("truncated key at offset %d: want %d bytes", offset, keyLen)
		}
		key := buf[offset : offset+keyLen]
		offset += keyLen

		if len(buf)-offset < 4 {
			return nil, fmt.Errorf("truncated value length at offset %d", offset)
		}
		valueLen := int(binary.LittleEndian.Uint32(buf[offset:]))
		offset += 4
		if valueLen < 0 || len(buf)-offset < valueLen {
			return nil, fmt.Errorf("truncated value at offset %d: want %d bytes", offset, valueLen)
		}
		value := buf[offset : offset+valueLen]
		offset += valueLen

		if d.Exists(key) {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		d.Set(key, value)
	}
	return d, nil
}

// MustFromBytes is FromBytes for buffers produced by trusted code. It panics on malformed input.
func MustFromBytes(buf []byte) *Dict {
	d, err := FromBytes(buf)
	if err != nil {
		panic(fmt.Sprintf("dict: %v", err))
	}
	return d
}

// String renders the dict for logging
func (d *Dict) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %x", k, d.items[k])
	}
	b.WriteByte('}')
	return b.String()
}

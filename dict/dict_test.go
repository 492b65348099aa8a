package dict

import (
	"bytes"
	"testing"

	"github.com/govm-net/wasmlib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyDict(t *testing.T) {
	d := New()
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Bytes())

	parsed, err := FromBytes(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Len())
	assert.True(t, parsed.Equal(d))
}

func TestWireFormat(t *testing.T) {
	d := New()
	d.SetString("a", []byte{0x01, 0x02})
	d.SetString("bc", nil)

	expected := []byte{
		0x01, 0x00, 'a', 0x02, 0x00, 0x00, 0x00, 0x01, 0x02,
		0x02, 0x00, 'b', 'c', 0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, expected, d.Bytes())

	parsed, err := FromBytes(expected)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("bc")}, parsed.Keys())
	assert.True(t, parsed.Exists([]byte("bc")))
	assert.Empty(t, parsed.GetString("bc"))
}

func TestRoundTripPreservesOrder(t *testing.T) {
	d := New()
	d.SetString("zeta", []byte("1"))
	d.SetString("alpha", []byte("2"))
	d.SetString("mid", []byte("3"))

	parsed, err := FromBytes(d.Bytes())
	require.NoError(t, err)
	assert.Equal(t, d.Keys(), parsed.Keys())
	assert.Equal(t, d.Bytes(), parsed.Bytes())
	assert.True(t, d.Equal(parsed))
}

func TestOverwriteAndDelete(t *testing.T) {
	d := New()
	d.SetString("a", []byte("1"))
	d.SetString("b", []byte("2"))
	d.SetString("a", []byte("3"))

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []byte("3"), d.GetString("a"))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, d.Keys())

	d.Delete([]byte("a"))
	assert.False(t, d.Exists([]byte("a")))
	assert.Nil(t, d.GetString("a"))
	assert.Equal(t, [][]byte{[]byte("b")}, d.Keys())

	d.Delete([]byte("missing"))
	assert.Equal(t, 1, d.Len())
}

func TestEqualIgnoresOrder(t *testing.T) {
	a := New()
	a.SetString("x", []byte{1})
	a.SetString("y", []byte{2})

	b := New()
	b.SetString("y", []byte{2})
	b.SetString("x", []byte{1})

	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.Bytes(), b.Bytes())

	b.SetString("x", []byte{9})
	assert.False(t, a.Equal(b))
}

func TestCloneIsIndependent(t *testing.T) {
	a := New()
	value := []byte{1, 2}
	a.SetString("k", value)
	value[0] = 7
	assert.Equal(t, []byte{1, 2}, a.GetString("k"))

	c := a.Clone()
	c.SetString("k", []byte{3})
	assert.Equal(t, []byte{1, 2}, a.GetString("k"))
}

func TestMalformedBuffers(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"half key length", []byte{0x01}},
		{"short key", []byte{0x03, 0x00, 'a'}},
		{"missing value length", []byte{0x01, 0x00, 'a', 0x01}},
		{"short value", []byte{0x01, 0x00, 'a', 0x05, 0x00, 0x00, 0x00, 0x01}},
		{"duplicate key", []byte{
			0x01, 0x00, 'a', 0x00, 0x00, 0x00, 0x00,
			0x01, 0x00, 'a', 0x00, 0x00, 0x00, 0x00,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromBytes(tt.buf)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustFromBytes([]byte{0x01}) })
}

func TestEach(t *testing.T) {
	d := New()
	d.SetString("a", []byte{1})
	d.SetString("b", []byte{2})
	d.SetString("c", []byte{3})

	var seen []string
	d.Each(func(key, value []byte) bool {
		seen = append(seen, string(key))
		return len(seen) < 2
	})
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, `{"a": 01, "b": 02, "c": 03}`, d.String())
}

func TestKeyLengthLimit(t *testing.T) {
	d := New()
	longest := bytes.Repeat([]byte{'k'}, MaxKeyLength)
	d.Set(longest, []byte("v"))

	decoded, err := FromBytes(d.Bytes())
	require.NoError(t, err)
	assert.True(t, d.Equal(decoded))
	assert.Equal(t, []byte("v"), decoded.Get(longest))

	err = errors.Guard(func() {
		d.Set(append(longest, 'k'), []byte("v"))
	})
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindOutOfBounds, e.Kind)
	assert.Equal(t, 1, d.Len())
}

package memory

import (
	"testing"

	"github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootExists(t *testing.T) {
	b := NewBackend()
	typeID, ok, err := b.Object(types.ObjectIDRoot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.TypeMap, typeID)

	_, ok, err = b.Object(42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.PutKey([]byte("name"), -18))

	id, ok, err := b.KeyID([]byte("name"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.Key32(-18), id)

	name, ok, err := b.KeyName(-18)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("name"), name)

	count, err := b.KeyCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSlotsKeepCreationOrder(t *testing.T) {
	b := NewBackend()
	root := types.ObjectIDRoot

	require.NoError(t, b.PutSlot(root, context.Slot{Key: -20, TypeID: types.TypeString, Value: []byte("a")}))
	require.NoError(t, b.PutSlot(root, context.Slot{Key: -19, TypeID: types.TypeString, Value: []byte("b")}))
	require.NoError(t, b.PutSlot(root, context.Slot{Key: -20, TypeID: types.TypeString, Value: []byte("c")}))

	slots, err := b.Slots(root)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, types.Key32(-20), slots[0].Key)
	assert.Equal(t, []byte("c"), slots[0].Value)
	assert.Equal(t, types.Key32(-19), slots[1].Key)

	require.NoError(t, b.DeleteSlot(root, -20))
	_, ok, err := b.Slot(root, -20)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlotValuesAreCopied(t *testing.T) {
	b := NewBackend()
	value := []byte{1, 2, 3}
	require.NoError(t, b.PutSlot(types.ObjectIDRoot, context.Slot{Key: 0, TypeID: types.TypeBytes, Value: value}))
	value[0] = 9

	slot, ok, err := b.Slot(types.ObjectIDRoot, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, slot.Value)
}

func TestClearIsRecursive(t *testing.T) {
	b := NewBackend()
	child, err := b.CreateChild(types.ObjectIDRoot, types.KeyState, types.TypeMap)
	require.NoError(t, err)
	grandchild, err := b.CreateChild(child, -18, types.TypeArray|types.TypeInt64)
	require.NoError(t, err)
	require.NoError(t, b.PutSlot(grandchild, context.Slot{Key: 0, TypeID: types.TypeInt64, Value: make([]byte, 8)}))
	require.NoError(t, b.PutSlot(child, context.Slot{Key: -19, TypeID: types.TypeBool, Value: []byte{1}}))

	found, ok, err := b.Child(types.ObjectIDRoot, types.KeyState)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, child, found)

	require.NoError(t, b.Clear(child))

	_, ok, err = b.Child(child, -18)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = b.Object(grandchild)
	require.NoError(t, err)
	assert.False(t, ok)
	slots, err := b.Slots(child)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// the cleared object itself survives
	_, ok, err = b.Object(child)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvents(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.AddEvent(context.Event{Contract: "c", Text: "one"}))
	require.NoError(t, b.AddEvent(context.Event{Contract: "c", Text: "two"}))
	events, err := b.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "two", events[1].Text)
}

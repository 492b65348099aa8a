package memory

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/types"
)

type memSlot struct {
	slot context.Slot
	seq  uint64
}

type memObject struct {
	typeID   types.TypeID
	slots    map[types.Key32]*memSlot
	children map[types.Key32]types.ObjectID
}

func newObject(typeID types.TypeID) *memObject {
	return &memObject{
		typeID:   typeID,
		slots:    make(map[types.Key32]*memSlot),
		children: make(map[types.Key32]types.ObjectID),
	}
}

// Backend keeps contract state in process memory
type Backend struct {
	mu      sync.Mutex
	keys    map[string]types.Key32
	names   map[types.Key32]string
	objects map[types.ObjectID]*memObject
	nextID  types.ObjectID
	seq     uint64
	events  []context.Event
}

var _ context.Backend = (*Backend)(nil)

func init() {
	context.Register(context.MemoryBackendType, func(params map[string]any) (context.Backend, error) {
		return NewBackend(), nil
	})
}

// NewBackend creates an empty in-memory backend
func NewBackend() *Backend {
	b := &Backend{
		keys:    make(map[string]types.Key32),
		names:   make(map[types.Key32]string),
		objects: make(map[types.ObjectID]*memObject),
		nextID:  types.ObjectIDRoot + 1,
	}
	b.objects[types.ObjectIDRoot] = newObject(types.TypeMap)
	return b
}

func (b *Backend) KeyID(name []byte) (types.Key32, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.keys[string(name)]
	return id, ok, nil
}

func (b *Backend) KeyName(id types.Key32) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.names[id]
	return []byte(name), ok, nil
}

func (b *Backend) KeyCount() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.keys), nil
}

func (b *Backend) PutKey(name []byte, id types.Key32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys[string(name)] = id
	b.names[id] = string(name)
	return nil
}

func (b *Backend) Object(id types.ObjectID) (types.TypeID, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[id]
	if !ok {
		return 0, false, nil
	}
	return obj.typeID, true, nil
}

func (b *Backend) Child(parent types.ObjectID, key types.Key32) (types.ObjectID, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[parent]
	if !ok {
		return 0, false, nil
	}
	id, ok := obj.children[key]
	return id, ok, nil
}

func (b *Backend) CreateChild(parent types.ObjectID, key types.Key32, typeID types.TypeID) (types.ObjectID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[parent]
	if !ok {
		return 0, errObjectNotFound(parent)
	}
	id := b.nextID
	b.nextID++
	b.objects[id] = newObject(typeID)
	obj.children[key] = id
	return id, nil
}

func (b *Backend) Slot(objID types.ObjectID, key types.Key32) (context.Slot, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[objID]
	if !ok {
		return context.Slot{}, false, nil
	}
	s, ok := obj.slots[key]
	if !ok {
		return context.Slot{}, false, nil
	}
	slot := s.slot
	slot.Value = bytes.Clone(slot.Value)
	if slot.Value == nil {
		slot.Value = []byte{}
	}
	return slot, true, nil
}

func (b *Backend) PutSlot(objID types.ObjectID, slot context.Slot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[objID]
	if !ok {
		return errObjectNotFound(objID)
	}
	slot.Value = bytes.Clone(slot.Value)
	if existing, ok := obj.slots[slot.Key]; ok {
		existing.slot = slot
		return nil
	}
	b.seq++
	obj.slots[slot.Key] = &memSlot{slot: slot, seq: b.seq}
	return nil
}

func (b *Backend) DeleteSlot(objID types.ObjectID, key types.Key32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if obj, ok := b.objects[objID]; ok {
		delete(obj.slots, key)
	}
	return nil
}

func (b *Backend) Slots(objID types.ObjectID) ([]context.Slot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[objID]
	if !ok {
		return nil, nil
	}
	list := make([]*memSlot, 0, len(obj.slots))
	for _, s := range obj.slots {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]context.Slot, len(list))
	for i, s := range list {
		out[i] = s.slot
		out[i].Value = bytes.Clone(s.slot.Value)
	}
	return out, nil
}

func (b *Backend) Clear(objID types.ObjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[objID]
	if !ok {
		return errObjectNotFound(objID)
	}
	b.clearLocked(obj)
	return nil
}

func (b *Backend) clearLocked(obj *memObject) {
	for _, childID := range obj.children {
		if child, ok := b.objects[childID]; ok {
			b.clearLocked(child)
			delete(b.objects, childID)
		}
	}
	obj.slots = make(map[types.Key32]*memSlot)
	obj.children = make(map[types.Key32]types.ObjectID)
}

func (b *Backend) AddEvent(event context.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *Backend) Events() ([]context.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]context.Event, len(b.events))
	copy(out, b.events)
	return out, nil
}

func (b *Backend) Close() error {
	return nil
}

func errObjectNotFound(id types.ObjectID) error {
	return fmt.Errorf("object %d does not exist", id)
}

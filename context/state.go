package context

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// CallInfo is the read-only information a contract sees about the running call
type CallInfo struct {
	Caller    core.ScAgentID
	Contract  core.Hname
	ChainID   core.ScChainID
	Timestamp int64
}

// CallHandler executes a cross-contract call issued by the contract behind a State
type CallHandler func(caller core.Hname, req *core.CallRequest) (*dict.Dict, error)

// State implements types.StateStore for one contract on top of a Backend
type State struct {
	mu      sync.Mutex
	name    string
	backend Backend
	logger  *slog.Logger

	info     CallInfo
	onCall   CallHandler
	ret      []byte
	panicMsg string
}

var _ types.StateStore = (*State)(nil)

// NewState creates the state of contract name
func NewState(name string, backend Backend) *State {
	return &State{
		name:    name,
		backend: backend,
		logger:  slog.Default().With("contract", name),
		info:    CallInfo{Contract: core.NewHname(name)},
	}
}

// Name returns the contract name
func (s *State) Name() string {
	return s.name
}

// Backend returns the underlying backend
func (s *State) Backend() Backend {
	return s.backend
}

// SetLogger replaces the slog logger used for contract logs and events
func (s *State) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger.With("contract", s.name)
}

// SetCallHandler installs the handler for cross-contract calls
func (s *State) SetCallHandler(handler CallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCall = handler
}

// BeginCall resets the per-call containers and loads params
func (s *State) BeginCall(info CallInfo, params *dict.Dict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info.Contract == 0 {
		info.Contract = core.NewHname(s.name)
	}
	s.info = info
	s.ret = nil
	s.panicMsg = ""

	for _, key := range []types.Key32{types.KeyParams, types.KeyResults} {
		obj, err := s.childLocked(types.ObjectIDRoot, key, types.TypeMap)
		if err != nil {
			return err
		}
		if err := s.backend.Clear(obj); err != nil {
			return fmt.Errorf("failed to clear call container: %w", err)
		}
	}
	if params == nil {
		return nil
	}

	paramsObj, err := s.childLocked(types.ObjectIDRoot, types.KeyParams, types.TypeMap)
	if err != nil {
		return err
	}
	var loadErr error
	params.Each(func(key, value []byte) bool {
		var keyID types.Key32
		keyID, loadErr = s.keyIDLocked(key)
		if loadErr != nil {
			return false
		}
		loadErr = s.backend.PutSlot(paramsObj, Slot{Key: keyID, TypeID: TypeUntyped, Value: value})
		return loadErr == nil
	})
	if loadErr != nil {
		return fmt.Errorf("failed to load params: %w", loadErr)
	}
	return nil
}

// Info returns the information of the running call
func (s *State) Info() CallInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Results collects the results container into a dict
func (s *State) Results() (*dict.Dict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumpLocked(types.KeyResults)
}

// Exports returns the entry point names a contract registered at load time,
// keyed by dispatch index. The version sentinel is included under KeyZzzzzzz.
func (s *State) Exports() (map[types.Key32]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok, err := s.backend.Child(types.ObjectIDRoot, types.KeyExports)
	if err != nil {
		return nil, fmt.Errorf("failed to read exports: %w", err)
	}
	out := make(map[types.Key32]string)
	if !ok {
		return out, nil
	}
	slots, err := s.backend.Slots(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read exports: %w", err)
	}
	for _, slot := range slots {
		out[slot.Key] = codec.StringFromBytes(slot.Value)
	}
	return out, nil
}

// TakePanic returns and clears the message the contract reported through the panic slot
func (s *State) TakePanic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.panicMsg
	s.panicMsg = ""
	return msg
}

// Events lists the events emitted so far
func (s *State) Events() ([]Event, error) {
	return s.backend.Events()
}

// Close closes the backend
func (s *State) Close() error {
	return s.backend.Close()
}

// KeyID interns key
func (s *State) KeyID(key []byte) (types.Key32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyIDLocked(key)
}

// keyIDLocked interns a contract key. Predefined keys are never resolved by name,
// so a field called "length" stays an ordinary field.
func (s *State) keyIDLocked(key []byte) (types.Key32, error) {
	id, ok, err := s.backend.KeyID(key)
	if err != nil {
		return 0, fmt.Errorf("failed to look up key: %w", err)
	}
	if ok {
		return id, nil
	}
	count, err := s.backend.KeyCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	id = types.KeyZzzzzzz - 1 - types.Key32(count)
	if err := s.backend.PutKey(key, id); err != nil {
		return 0, fmt.Errorf("failed to store key: %w", err)
	}
	return id, nil
}

func (s *State) keyName(id types.Key32) string {
	for name, predefined := range types.PredefinedKeyNames {
		if predefined == id {
			return name
		}
	}
	if id >= 0 {
		return strconv.Itoa(int(id))
	}
	name, ok, err := s.backend.KeyName(id)
	if err != nil || !ok {
		return strconv.Itoa(int(id))
	}
	return string(name)
}

// ObjectID resolves the child container stored under key, creating it on first use
func (s *State) ObjectID(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) (types.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.childLocked(objID, keyID, typeID)
}

func (s *State) childLocked(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) (types.ObjectID, error) {
	if !typeID.IsContainer() {
		return 0, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Detail("type %d is not a container", typeID).Build()
	}
	parentType, err := s.objectType(objID)
	if err != nil {
		return 0, err
	}

	child, ok, err := s.backend.Child(objID, keyID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve child: %w", err)
	}
	if ok {
		childType, _, err := s.backend.Object(child)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve child: %w", err)
		}
		if childType != typeID {
			return 0, s.mismatch(objID, keyID, childType, typeID)
		}
		return child, nil
	}

	if parentType.IsArray() {
		if parentType.ElemType() != typeID {
			return 0, s.mismatch(objID, keyID, parentType.ElemType(), typeID)
		}
		length, err := s.lengthLocked(objID)
		if err != nil {
			return 0, err
		}
		if int32(keyID) != length {
			return 0, errors.New(errors.PhaseHost, errors.KindOutOfBounds).
				Detail("index %d out of range for length %d", keyID, length).Build()
		}
		if err := s.setLengthLocked(objID, length+1); err != nil {
			return 0, err
		}
	}

	child, err = s.backend.CreateChild(objID, keyID, typeID)
	if err != nil {
		return 0, fmt.Errorf("failed to create child: %w", err)
	}
	return child, nil
}

// GetBytes returns the value stored in a slot
func (s *State) GetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if objID == types.ObjectIDRoot {
		value, ok, err := s.rootValueLocked(keyID, typeID)
		if err != nil || ok {
			return value, ok, err
		}
	}

	parentType, err := s.objectType(objID)
	if err != nil {
		return nil, false, err
	}

	if keyID == types.KeyLength {
		length, err := s.lengthLocked(objID)
		if err != nil {
			return nil, false, err
		}
		return codec.Int32ToBytes(length), true, nil
	}

	if typeID.IsContainer() {
		_, ok, err := s.backend.Child(objID, keyID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve child: %w", err)
		}
		return nil, ok, nil
	}

	if parentType.IsArray() {
		if parentType.ElemType() != typeID {
			return nil, false, s.mismatch(objID, keyID, parentType.ElemType(), typeID)
		}
	}

	slot, ok, err := s.backend.Slot(objID, keyID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	if slot.TypeID == TypeUntyped {
		if err := checkSize(typeID, slot.Value); err != nil {
			return nil, false, err
		}
	} else if slot.TypeID != typeID {
		return nil, false, s.mismatch(objID, keyID, slot.TypeID, typeID)
	}
	return slot.Value, true, nil
}

// fixed type tags of the call info values under the root
var rootValueTypes = map[types.Key32]types.TypeID{
	types.KeyCaller:    types.TypeAgentID,
	types.KeyContract:  types.TypeHname,
	types.KeyChainID:   types.TypeChainID,
	types.KeyTimestamp: types.TypeInt64,
	types.KeyReturn:    types.TypeBytes,
}

func (s *State) rootValueLocked(keyID types.Key32, typeID types.TypeID) ([]byte, bool, error) {
	want, ok := rootValueTypes[keyID]
	if !ok {
		return nil, false, nil
	}
	if typeID != want {
		return nil, false, s.mismatch(types.ObjectIDRoot, keyID, want, typeID)
	}
	switch keyID {
	case types.KeyCaller:
		return s.info.Caller.Bytes(), true, nil
	case types.KeyContract:
		return s.info.Contract.Bytes(), true, nil
	case types.KeyChainID:
		return s.info.ChainID.Bytes(), true, nil
	case types.KeyTimestamp:
		return codec.Int64ToBytes(s.info.Timestamp), true, nil
	}
	if s.ret == nil {
		return nil, false, nil
	}
	return s.ret, true, nil
}

// SetBytes stores a value in a slot
func (s *State) SetBytes(objID types.ObjectID, keyID types.Key32, typeID types.TypeID, value []byte) error {
	s.mu.Lock()
	if objID == types.ObjectIDRoot && keyID == types.KeyCall {
		handler := s.onCall
		s.mu.Unlock()
		return s.call(handler, value)
	}
	defer s.mu.Unlock()

	if objID == types.ObjectIDRoot {
		handled, err := s.setRootLocked(keyID, value)
		if handled || err != nil {
			return err
		}
	}

	parentType, err := s.objectType(objID)
	if err != nil {
		return err
	}

	if keyID == types.KeyLength {
		if typeID != types.TypeInt32 {
			return s.mismatch(objID, keyID, types.TypeInt32, typeID)
		}
		if codec.Int32FromBytes(value) != 0 {
			return errors.New(errors.PhaseHost, errors.KindUnsupported).
				Detail("length can only be set to 0").Build()
		}
		if err := s.backend.Clear(objID); err != nil {
			return fmt.Errorf("failed to clear object: %w", err)
		}
		return nil
	}

	if typeID.IsContainer() {
		return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Detail("cannot store bytes as container type %d", typeID).Build()
	}
	if err := checkSize(typeID, value); err != nil {
		return err
	}

	if parentType.IsArray() {
		if parentType.ElemType() != typeID {
			return s.mismatch(objID, keyID, parentType.ElemType(), typeID)
		}
		length, err := s.lengthLocked(objID)
		if err != nil {
			return err
		}
		switch {
		case keyID < 0 || int32(keyID) > length:
			return errors.New(errors.PhaseHost, errors.KindOutOfBounds).
				Detail("index %d out of range for length %d", keyID, length).Build()
		case int32(keyID) == length:
			if err := s.setLengthLocked(objID, length+1); err != nil {
				return err
			}
		}
	} else {
		slot, ok, err := s.backend.Slot(objID, keyID)
		if err != nil {
			return fmt.Errorf("failed to read slot: %w", err)
		}
		if ok && slot.TypeID != TypeUntyped && slot.TypeID != typeID {
			return s.mismatch(objID, keyID, slot.TypeID, typeID)
		}
	}

	if err := s.backend.PutSlot(objID, Slot{Key: keyID, TypeID: typeID, Value: value}); err != nil {
		return fmt.Errorf("failed to write slot: %w", err)
	}
	return nil
}

func (s *State) setRootLocked(keyID types.Key32, value []byte) (bool, error) {
	switch keyID {
	case types.KeyLog:
		s.logger.Info("Contract log", "text", codec.StringFromBytes(value))
		return true, nil
	case types.KeyTrace:
		s.logger.Debug("Contract trace", "text", codec.StringFromBytes(value))
		return true, nil
	case types.KeyPanic:
		s.panicMsg = codec.StringFromBytes(value)
		s.logger.Warn("Contract panic", "error", s.panicMsg)
		return true, nil
	case types.KeyEvent:
		event := Event{Contract: s.name, Text: codec.StringFromBytes(value), Timestamp: s.info.Timestamp}
		if err := s.backend.AddEvent(event); err != nil {
			return true, fmt.Errorf("failed to save event: %w", err)
		}
		s.logger.Info("Contract event", "text", event.Text, "timestamp", event.Timestamp)
		return true, nil
	case types.KeyCaller, types.KeyContract, types.KeyChainID, types.KeyTimestamp, types.KeyReturn:
		return true, errors.New(errors.PhaseHost, errors.KindPrecondition).
			Path(s.keyName(keyID)).
			Detail("read-only").Build()
	}
	return false, nil
}

func (s *State) call(handler CallHandler, value []byte) error {
	if handler == nil {
		return errors.New(errors.PhaseHost, errors.KindUnsupported).
			Detail("cross-contract calls are not available").Build()
	}

	var req *core.CallRequest
	if err := errors.Guard(func() {
		req = codec.StructFromBytes(value, core.DecodeCallRequest)
	}); err != nil {
		return err
	}
	if req == nil {
		return errors.New(errors.PhaseHost, errors.KindInvalidData).Detail("empty call request").Build()
	}

	s.mu.Lock()
	caller := s.info.Contract
	s.mu.Unlock()

	results, err := handler(caller, req)
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", req.Contract, req.Function, err)
	}
	if results == nil {
		results = dict.New()
	}

	s.mu.Lock()
	s.ret = results.Bytes()
	s.mu.Unlock()
	return nil
}

// DelKey removes a slot
func (s *State) DelKey(objID types.ObjectID, keyID types.Key32, typeID types.TypeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentType, err := s.objectType(objID)
	if err != nil {
		return err
	}
	if parentType.IsArray() {
		return errors.New(errors.PhaseHost, errors.KindUnsupported).
			Detail("array elements cannot be deleted").Build()
	}
	if objID == types.ObjectIDRoot && keyID < 0 && keyID >= types.KeyZzzzzzz {
		return errors.New(errors.PhaseHost, errors.KindPrecondition).
			Path(s.keyName(keyID)).
			Detail("predefined root key cannot be deleted").Build()
	}

	slot, ok, err := s.backend.Slot(objID, keyID)
	if err != nil {
		return fmt.Errorf("failed to read slot: %w", err)
	}
	if !ok {
		return nil
	}
	if slot.TypeID != TypeUntyped && slot.TypeID != typeID {
		return s.mismatch(objID, keyID, slot.TypeID, typeID)
	}
	if err := s.backend.DeleteSlot(objID, keyID); err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return nil
}

func (s *State) objectType(objID types.ObjectID) (types.TypeID, error) {
	typeID, ok, err := s.backend.Object(objID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve object: %w", err)
	}
	if !ok {
		return 0, errors.New(errors.PhaseHost, errors.KindNotFound).
			Detail("object %d does not exist", objID).Build()
	}
	return typeID, nil
}

func (s *State) lengthLocked(objID types.ObjectID) (int32, error) {
	slot, ok, err := s.backend.Slot(objID, types.KeyLength)
	if err != nil {
		return 0, fmt.Errorf("failed to read length: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return codec.Int32FromBytes(slot.Value), nil
}

func (s *State) setLengthLocked(objID types.ObjectID, length int32) error {
	err := s.backend.PutSlot(objID, Slot{Key: types.KeyLength, TypeID: types.TypeInt32, Value: codec.Int32ToBytes(length)})
	if err != nil {
		return fmt.Errorf("failed to write length: %w", err)
	}
	return nil
}

func (s *State) dumpLocked(key types.Key32) (*dict.Dict, error) {
	d := dict.New()
	obj, ok, err := s.backend.Child(types.ObjectIDRoot, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve container: %w", err)
	}
	if !ok {
		return d, nil
	}
	slots, err := s.backend.Slots(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read container: %w", err)
	}
	for _, slot := range slots {
		d.SetString(s.keyName(slot.Key), slot.Value)
	}
	return d, nil
}

func (s *State) mismatch(objID types.ObjectID, keyID types.Key32, have, want types.TypeID) error {
	return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		Path(strconv.Itoa(int(objID)), s.keyName(keyID)).
		Detail("slot has type %d, accessed as %d", have, want).Build()
}

func checkSize(typeID types.TypeID, value []byte) error {
	size := types.TypeSizes[typeID]
	if size != 0 && len(value) != size {
		return errors.New(errors.PhaseHost, errors.KindInvalidData).
			Detail("type %d needs %d bytes, got %d", typeID, size, len(value)).Build()
	}
	return nil
}

package context_test

import (
	stderrors "errors"
	"testing"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/context/memory"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T) *context.State {
	t.Helper()
	s := context.NewState("test", memory.NewBackend())
	t.Cleanup(func() { s.Close() })
	return s
}

func requireKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	require.Error(t, err)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e), "unexpected error %v", err)
	assert.Equal(t, kind, e.Kind, e.Error())
}

func TestKeyInterning(t *testing.T) {
	s := newState(t)

	id, err := s.KeyID([]byte("balance"))
	require.NoError(t, err)
	assert.Equal(t, types.KeyZzzzzzz-1, id)

	again, err := s.KeyID([]byte("balance"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := s.KeyID([]byte("owner"))
	require.NoError(t, err)
	assert.Equal(t, types.KeyZzzzzzz-2, other)

	// predefined names are not resolved dynamically
	length, err := s.KeyID([]byte("length"))
	require.NoError(t, err)
	assert.Equal(t, types.KeyZzzzzzz-3, length)
}

func TestMapFieldNamedLength(t *testing.T) {
	s := newState(t)
	state, err := s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeMap)
	require.NoError(t, err)
	owner, err := s.KeyID([]byte("owner"))
	require.NoError(t, err)
	length, err := s.KeyID([]byte("length"))
	require.NoError(t, err)

	require.NoError(t, s.SetBytes(state, owner, types.TypeString, []byte("alice")))
	require.NoError(t, s.SetBytes(state, length, types.TypeInt32, codec.Int32ToBytes(7)))
	require.NoError(t, s.SetBytes(state, length, types.TypeInt32, codec.Int32ToBytes(0)))

	buf, exists, err := s.GetBytes(state, length, types.TypeInt32)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(0), codec.Int32FromBytes(buf))

	buf, exists, err = s.GetBytes(state, owner, types.TypeString)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("alice"), buf)
}

func TestChildResolutionIsStable(t *testing.T) {
	s := newState(t)

	first, err := s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeMap)
	require.NoError(t, err)
	second, err := s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeMap)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeArray|types.TypeInt64)
	requireKind(t, err, errors.KindTypeMismatch)

	_, err = s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeInt64)
	requireKind(t, err, errors.KindTypeMismatch)

	_, err = s.ObjectID(99, types.KeyState, types.TypeMap)
	requireKind(t, err, errors.KindNotFound)
}

func TestSlotTypeTagIsEnforced(t *testing.T) {
	s := newState(t)
	obj, err := s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeMap)
	require.NoError(t, err)
	key, err := s.KeyID([]byte("counter"))
	require.NoError(t, err)

	require.NoError(t, s.SetBytes(obj, key, types.TypeInt64, codec.Int64ToBytes(42)))

	value, exists, err := s.GetBytes(obj, key, types.TypeInt64)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(42), codec.Int64FromBytes(value))

	_, _, err = s.GetBytes(obj, key, types.TypeString)
	requireKind(t, err, errors.KindTypeMismatch)

	err = s.SetBytes(obj, key, types.TypeInt32, codec.Int32ToBytes(1))
	requireKind(t, err, errors.KindTypeMismatch)

	err = s.SetBytes(obj, key, types.TypeInt64, []byte{1, 2})
	requireKind(t, err, errors.KindInvalidData)

	require.NoError(t, s.DelKey(obj, key, types.TypeInt64))
	_, exists, err = s.GetBytes(obj, key, types.TypeInt64)
	require.NoError(t, err)
	assert.False(t, exists)

	// deleting an absent slot is fine
	require.NoError(t, s.DelKey(obj, key, types.TypeInt64))
}

func TestArrayGrowthAndClear(t *testing.T) {
	s := newState(t)
	state, err := s.ObjectID(types.ObjectIDRoot, types.KeyState, types.TypeMap)
	require.NoError(t, err)
	key, err := s.KeyID([]byte("bids"))
	require.NoError(t, err)
	arr, err := s.ObjectID(state, key, types.TypeArray|types.TypeString)
	require.NoError(t, err)

	length := func() int32 {
		buf, exists, err := s.GetBytes(arr, types.KeyLength, types.TypeInt32)
		require.NoError(t, err)
		require.True(t, exists)
		return codec.Int32FromBytes(buf)
	}
	assert.Equal(t, int32(0), length())

	require.NoError(t, s.SetBytes(arr, 0, types.TypeString, []byte("a")))
	require.NoError(t, s.SetBytes(arr, 1, types.TypeString, []byte("b")))
	assert.Equal(t, int32(2), length())

	// overwrite does not grow
	require.NoError(t, s.SetBytes(arr, 0, types.TypeString, []byte("c")))
	assert.Equal(t, int32(2), length())

	err = s.SetBytes(arr, 5, types.TypeString, []byte("x"))
	requireKind(t, err, errors.KindOutOfBounds)

	err = s.SetBytes(arr, 2, types.TypeInt64, codec.Int64ToBytes(1))
	requireKind(t, err, errors.KindTypeMismatch)

	err = s.DelKey(arr, 0, types.TypeString)
	requireKind(t, err, errors.KindUnsupported)

	require.NoError(t, s.SetBytes(arr, types.KeyLength, types.TypeInt32, codec.Int32ToBytes(0)))
	assert.Equal(t, int32(0), length())
	_, exists, err := s.GetBytes(arr, 0, types.TypeString)
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.SetBytes(arr, types.KeyLength, types.TypeInt32, codec.Int32ToBytes(3))
	requireKind(t, err, errors.KindUnsupported)
}

func TestMapArrayGrowth(t *testing.T) {
	s := newState(t)
	key, err := s.KeyID([]byte("rows"))
	require.NoError(t, err)
	arr, err := s.ObjectID(types.ObjectIDRoot, key, types.TypeArray|types.TypeMap)
	require.NoError(t, err)

	row0, err := s.ObjectID(arr, 0, types.TypeMap)
	require.NoError(t, err)
	same, err := s.ObjectID(arr, 0, types.TypeMap)
	require.NoError(t, err)
	assert.Equal(t, row0, same)

	_, err = s.ObjectID(arr, 3, types.TypeMap)
	requireKind(t, err, errors.KindOutOfBounds)

	buf, _, err := s.GetBytes(arr, types.KeyLength, types.TypeInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(1), codec.Int32FromBytes(buf))
}

func TestCallInfoIsReadOnly(t *testing.T) {
	s := newState(t)
	caller := core.NewScAgentID(core.ScAddress{1, 2, 3}, core.NewHname("alice"))
	require.NoError(t, s.BeginCall(context.CallInfo{Caller: caller, Timestamp: 1700000000}, nil))

	buf, exists, err := s.GetBytes(types.ObjectIDRoot, types.KeyCaller, types.TypeAgentID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, caller, core.AgentIDFromBytes(buf))

	buf, _, err = s.GetBytes(types.ObjectIDRoot, types.KeyContract, types.TypeHname)
	require.NoError(t, err)
	assert.Equal(t, core.NewHname("test"), core.HnameFromBytes(buf))

	buf, _, err = s.GetBytes(types.ObjectIDRoot, types.KeyTimestamp, types.TypeInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), codec.Int64FromBytes(buf))

	err = s.SetBytes(types.ObjectIDRoot, types.KeyTimestamp, types.TypeInt64, codec.Int64ToBytes(1))
	requireKind(t, err, errors.KindPrecondition)

	for _, tc := range []struct {
		key    types.Key32
		typeID types.TypeID
	}{
		{types.KeyCaller, types.TypeAddress},
		{types.KeyContract, types.TypeInt32},
		{types.KeyChainID, types.TypeBytes},
		{types.KeyTimestamp, types.TypeUint64},
		{types.KeyReturn, types.TypeString},
	} {
		_, _, err = s.GetBytes(types.ObjectIDRoot, tc.key, tc.typeID)
		requireKind(t, err, errors.KindTypeMismatch)
	}
}

func TestParamsAndResults(t *testing.T) {
	s := newState(t)

	params := dict.New()
	params.SetString("amount", codec.Int64ToBytes(500))
	params.SetString("name", []byte("bob"))
	require.NoError(t, s.BeginCall(context.CallInfo{}, params))

	paramsObj, err := s.ObjectID(types.ObjectIDRoot, types.KeyParams, types.TypeMap)
	require.NoError(t, err)
	amount, err := s.KeyID([]byte("amount"))
	require.NoError(t, err)

	// untyped params accept any typed read of the right size
	buf, exists, err := s.GetBytes(paramsObj, amount, types.TypeInt64)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(500), codec.Int64FromBytes(buf))

	_, _, err = s.GetBytes(paramsObj, amount, types.TypeInt32)
	requireKind(t, err, errors.KindInvalidData)

	resultsObj, err := s.ObjectID(types.ObjectIDRoot, types.KeyResults, types.TypeMap)
	require.NoError(t, err)
	total, err := s.KeyID([]byte("total"))
	require.NoError(t, err)
	require.NoError(t, s.SetBytes(resultsObj, total, types.TypeInt64, codec.Int64ToBytes(7)))

	results, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, codec.Int64ToBytes(7), results.GetString("total"))

	// the next call starts with fresh containers
	require.NoError(t, s.BeginCall(context.CallInfo{}, nil))
	results, err = s.Results()
	require.NoError(t, err)
	assert.Equal(t, 0, results.Len())
	_, exists, err = s.GetBytes(paramsObj, amount, types.TypeInt64)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPanicAndEvents(t *testing.T) {
	s := newState(t)

	require.NoError(t, s.SetBytes(types.ObjectIDRoot, types.KeyLog, types.TypeString, []byte("hello")))
	require.NoError(t, s.SetBytes(types.ObjectIDRoot, types.KeyEvent, types.TypeString, []byte("minted 5")))
	require.NoError(t, s.SetBytes(types.ObjectIDRoot, types.KeyPanic, types.TypeString, []byte("boom")))

	assert.Equal(t, "boom", s.TakePanic())
	assert.Equal(t, "", s.TakePanic())

	events, err := s.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "minted 5", events[0].Text)
	assert.Equal(t, "test", events[0].Contract)
}

func TestCrossContractCall(t *testing.T) {
	s := newState(t)

	req := &core.CallRequest{Contract: core.NewHname("other"), Function: core.NewHname("getValue")}
	err := s.SetBytes(types.ObjectIDRoot, types.KeyCall, types.TypeBytes, codec.StructToBytes(req))
	requireKind(t, err, errors.KindUnsupported)

	var seen *core.CallRequest
	s.SetCallHandler(func(caller core.Hname, r *core.CallRequest) (*dict.Dict, error) {
		assert.Equal(t, core.NewHname("test"), caller)
		seen = r
		out := dict.New()
		out.SetString("value", []byte{9})
		return out, nil
	})

	params := dict.New()
	params.SetString("k", []byte{1})
	req.Params = params.Bytes()
	require.NoError(t, s.SetBytes(types.ObjectIDRoot, types.KeyCall, types.TypeBytes, codec.StructToBytes(req)))
	require.NotNil(t, seen)
	assert.Equal(t, req.Function, seen.Function)
	assert.Equal(t, params.Bytes(), seen.Params)

	buf, exists, err := s.GetBytes(types.ObjectIDRoot, types.KeyReturn, types.TypeBytes)
	require.NoError(t, err)
	assert.True(t, exists)
	ret, err := dict.FromBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, ret.GetString("value"))
}

func TestExportsListing(t *testing.T) {
	s := newState(t)
	mod := core.NewModule(core.NewLocalHost(s))
	exports := core.NewExports(mod)
	exports.AddFunc("deposit", func(ctx core.FuncContext) {})
	exports.AddView("balance", func(ctx core.ViewContext) {})

	names, err := s.Exports()
	require.NoError(t, err)
	assert.Equal(t, map[types.Key32]string{
		types.KeyZzzzzzz: types.SentinelName,
		0:                "deposit",
		0x8000:           "balance",
	}, names)
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, context.ListRegistered(), context.MemoryBackendType)

	backend, err := context.Get(context.MemoryBackendType, nil)
	require.NoError(t, err)
	assert.NotNil(t, backend)

	_, err = context.Get("nope", nil)
	assert.Error(t, err)

	r := context.NewRegistry()
	assert.Equal(t, context.MemoryBackendType, r.DefaultBackendType())
	require.NoError(t, r.Register("custom", func(map[string]any) (context.Backend, error) {
		return memory.NewBackend(), nil
	}))
	assert.Error(t, r.Register("custom", nil))
	require.NoError(t, r.SetDefault("custom"))
	assert.Equal(t, context.BackendType("custom"), r.DefaultBackendType())
	assert.Error(t, r.SetDefault("missing"))
}

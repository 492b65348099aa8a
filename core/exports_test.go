package core_test

import (
	stderrors "errors"
	"testing"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchByIndex(t *testing.T) {
	state, mod := setup(t)
	exports := core.NewExports(mod)

	var called []string
	exports.AddFunc("a", func(ctx core.FuncContext) { called = append(called, "a") })
	exports.AddFunc("b", func(ctx core.FuncContext) { called = append(called, "b") })
	exports.AddView("c", func(ctx core.ViewContext) { called = append(called, "c") })

	assert.Equal(t, []string{"a", "b"}, exports.Funcs())
	assert.Equal(t, []string{"c"}, exports.Views())

	require.NoError(t, exports.Dispatch(0))
	require.NoError(t, exports.Dispatch(1))
	require.NoError(t, exports.Dispatch(0x8000))
	assert.Equal(t, []string{"a", "b", "c"}, called)

	for _, index := range []int32{2, 0x8001, -1} {
		err := exports.Dispatch(index)
		require.Error(t, err, "index %#x", index)
		var e *errors.Error
		require.True(t, stderrors.As(err, &e))
		assert.Equal(t, errors.PhaseDispatch, e.Phase)
		assert.Equal(t, errors.KindOutOfBounds, e.Kind)
	}
	assert.Len(t, called, 3)

	names, err := state.Exports()
	require.NoError(t, err)
	assert.Equal(t, "a", names[0])
	assert.Equal(t, "b", names[1])
	assert.Equal(t, "c", names[0x8000])
	assert.Equal(t, types.SentinelName, names[types.KeyZzzzzzz])
}

func TestDispatchByName(t *testing.T) {
	_, mod := setup(t)
	exports := core.NewExports(mod)

	hits := 0
	exports.AddFunc("deposit", func(ctx core.FuncContext) { hits++ })
	exports.AddView("balance", func(ctx core.ViewContext) { hits += 10 })

	require.NoError(t, exports.DispatchName("deposit"))
	require.NoError(t, exports.DispatchHname(core.NewHname("balance")))
	assert.Equal(t, 11, hits)

	err := exports.DispatchName("withdraw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}

func TestDuplicateExportAborts(t *testing.T) {
	_, mod := setup(t)
	exports := core.NewExports(mod)
	exports.AddFunc("x", func(ctx core.FuncContext) {})

	err := errors.Guard(func() {
		exports.AddView("x", func(ctx core.ViewContext) {})
	})
	require.Error(t, err)
	assert.Equal(t, []string{}, exports.Views())
}

func TestHandlerContext(t *testing.T) {
	state, mod := setup(t)
	exports := core.NewExports(mod)

	exports.AddFunc("transfer", func(ctx core.FuncContext) {
		amount := ctx.Params().GetUint64(core.Key("amount"))
		ctx.Require(amount.Exists(), "missing mandatory parameter: amount")
		ctx.Require(amount.Value() > 0, "amount must be positive")

		balance := ctx.State().GetUint64(core.Key("balance"))
		balance.SetValue(balance.Value() + amount.Value())
		ctx.Results().GetUint64(core.Key("balance")).SetValue(balance.Value())
		ctx.Results().GetHname(core.Key("contract")).SetValue(ctx.Contract())
		ctx.Results().GetAgentID(core.Key("caller")).SetValue(ctx.Caller())
		ctx.Event("transfer " + amount.String())
		ctx.Log("transferred")
	})
	exports.AddView("getBalance", func(ctx core.ViewContext) {
		ctx.Results().GetUint64(core.Key("balance")).SetValue(ctx.State().GetUint64(core.Key("balance")).Value())
		ctx.Results().GetInt64(core.Key("now")).SetValue(ctx.Timestamp())
	})

	caller := core.NewScAgentID(core.ScAddress{4}, 0)
	params := dict.New()
	params.SetString("amount", codec.Uint64ToBytes(25))
	require.NoError(t, state.BeginCall(context.CallInfo{Caller: caller, Timestamp: 99}, params))
	require.NoError(t, exports.DispatchName("transfer"))

	results, err := state.Results()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), codec.Uint64FromBytes(results.GetString("balance")))
	assert.Equal(t, core.NewHname("test"), core.HnameFromBytes(results.GetString("contract")))
	assert.Equal(t, caller, core.AgentIDFromBytes(results.GetString("caller")))

	events, err := state.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "transfer 25", events[0].Text)

	require.NoError(t, state.BeginCall(context.CallInfo{Timestamp: 100}, nil))
	require.NoError(t, exports.DispatchName("getBalance"))
	results, err = state.Results()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), codec.Uint64FromBytes(results.GetString("balance")))
	assert.Equal(t, int64(100), codec.Int64FromBytes(results.GetString("now")))

	// a failed precondition aborts the call but keeps earlier writes
	require.NoError(t, state.BeginCall(context.CallInfo{}, nil))
	err = exports.DispatchName("transfer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory parameter: amount")
}

func TestOnCallReportsPanic(t *testing.T) {
	state, mod := setup(t)
	exports := core.NewExports(mod)
	exports.AddFunc("fail", func(ctx core.FuncContext) {
		ctx.State().GetInt32(core.Key("touched")).SetValue(1)
		ctx.Panic("nope")
	})

	exports.OnCall(0)
	assert.Contains(t, state.TakePanic(), "nope")

	// state written before the abort stays
	assert.Equal(t, int32(1), stateMap(mod).GetInt32(core.Key("touched")).Value())

	exports.OnCall(7)
	assert.Contains(t, state.TakePanic(), "invalid call index 7")
}

func TestPanicTextIsNotAFormat(t *testing.T) {
	state, mod := setup(t)
	exports := core.NewExports(mod)
	exports.AddFunc("fail", func(ctx core.FuncContext) {
		ctx.Panic("100% sure: %d %s")
	})

	exports.OnCall(0)
	assert.Contains(t, state.TakePanic(), "100% sure: %d %s")
}

func TestCrossContractCallThroughContext(t *testing.T) {
	state, mod := setup(t)
	state.SetCallHandler(func(caller core.Hname, req *core.CallRequest) (*dict.Dict, error) {
		params, err := dict.FromBytes(req.Params)
		if err != nil {
			return nil, err
		}
		out := dict.New()
		out.SetString("echo", params.GetString("in"))
		out.SetString("fn", req.Function.Bytes())
		return out, nil
	})

	exports := core.NewExports(mod)
	var got *dict.Dict
	exports.AddFunc("relay", func(ctx core.FuncContext) {
		in := dict.New()
		in.SetString("in", []byte("ping"))
		got = ctx.Call(core.NewHname("other"), core.NewHname("echo"), in)
	})

	require.NoError(t, exports.Dispatch(0))
	require.NotNil(t, got)
	assert.Equal(t, []byte("ping"), got.GetString("echo"))
	assert.Equal(t, core.NewHname("echo").Bytes(), got.GetString("fn"))
}

func TestRequireFormatting(t *testing.T) {
	err := errors.Guard(func() { core.Require(false, "need %d more", 3) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need 3 more")

	err = errors.Guard(func() { core.Require(false, "100% sure") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "100% sure")

	assert.NoError(t, errors.Guard(func() { core.Require(true, "fine") }))
}

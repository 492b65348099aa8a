package wasi

import (
	"context"
	stderrors "errors"
	"testing"

	wasmctx "github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/context/memory"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
	"github.com/govm-net/wasmlib/wasi/wasitest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, name string, wasm []byte, opts Options) *Runner {
	t.Helper()
	ctx := context.Background()
	r, err := NewRunner(ctx, name, wasm, wasmctx.NewState(name, memory.NewBackend()), opts)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(ctx) })
	return r
}

func valueParams(v string) *dict.Dict {
	d := dict.New()
	d.SetString("value", []byte(v))
	return d
}

func TestRunnerLoadsExports(t *testing.T) {
	r := newTestRunner(t, "counter", wasitest.Module(types.SentinelName, nil), Options{})

	assert.Equal(t, []string{"store", "fail", "relay"}, r.Funcs())
	assert.Equal(t, []string{"load"}, r.Views())

	index, ok := r.Lookup(core.NewHname("load"))
	require.True(t, ok)
	assert.Equal(t, types.ExportViewFlag, index)
	_, ok = r.Lookup(core.NewHname("missing"))
	assert.False(t, ok)
}

func TestRunnerIndexTable(t *testing.T) {
	r := newTestRunner(t, "counter", wasitest.Module(types.SentinelName, nil), Options{})

	require.Len(t, r.indexes, len(r.exports))
	for h, e := range r.exports {
		byIndex, ok := r.indexes[e.index]
		require.True(t, ok, e.name)
		assert.Equal(t, e.name, byIndex.name)
		assert.Equal(t, h, core.NewHname(byIndex.name))
	}
	_, ok := r.indexes[int32(types.KeyZzzzzzz)]
	assert.False(t, ok)
}

func TestRunnerRejectsStaleLibrary(t *testing.T) {
	state := wasmctx.NewState("stale", memory.NewBackend())
	_, err := NewRunner(context.Background(), "stale", wasitest.Module("zzzzzzy", nil), state, Options{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrVersionMismatch))
}

func TestRunnerRejectsInvalidCode(t *testing.T) {
	state := wasmctx.NewState("bad", memory.NewBackend())
	_, err := NewRunner(context.Background(), "bad", nil, state, Options{})
	require.Error(t, err)

	_, err = NewRunner(context.Background(), "bad", []byte{0x00, 0x61, 0x73}, state, Options{})
	require.Error(t, err)
}

func TestRunnerCall(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t, "counter", wasitest.Module(types.SentinelName, nil), Options{})

	results, err := r.Call(ctx, wasmctx.CallInfo{}, "store", valueParams("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), results.GetString("value"))

	results, err = r.Call(ctx, wasmctx.CallInfo{}, "load", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), results.GetString("value"))

	results, err = r.CallIndex(ctx, wasmctx.CallInfo{}, types.ExportViewFlag, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), results.GetString("value"))

	// a missing param deletes the stored value
	results, err = r.Call(ctx, wasmctx.CallInfo{}, "store", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, results.Len())
	results, err = r.Call(ctx, wasmctx.CallInfo{}, "load", nil)
	require.NoError(t, err)
	assert.False(t, results.Exists([]byte("value")))
}

func TestRunnerCallErrors(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t, "counter", wasitest.Module(types.SentinelName, nil), Options{})

	_, err := r.Call(ctx, wasmctx.CallInfo{}, "fail", nil)
	require.Error(t, err)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.PhaseContract, e.Phase)
	assert.Equal(t, "90%!", e.Detail)

	_, err = r.Call(ctx, wasmctx.CallInfo{}, "withdraw", nil)
	require.Error(t, err)
	_, err = r.CallIndex(ctx, wasmctx.CallInfo{}, 3, nil)
	require.Error(t, err)
	_, err = r.CallIndex(ctx, wasmctx.CallInfo{}, types.ExportViewFlag|1, nil)
	require.Error(t, err)

	// no engine: cross-contract calls are unavailable and trap the guest
	_, err = r.Call(ctx, wasmctx.CallInfo{}, "relay", nil)
	require.Error(t, err)

	// the runner stays usable after a failed call
	_, err = r.Call(ctx, wasmctx.CallInfo{}, "store", valueParams("again"))
	require.NoError(t, err)
}

func TestRunnerRateLimit(t *testing.T) {
	r := newTestRunner(t, "counter", wasitest.Module(types.SentinelName, nil), Options{Rate: 1, Burst: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Call(ctx, wasmctx.CallInfo{}, "load", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = r.Call(context.Background(), wasmctx.CallInfo{}, "load", nil)
	require.NoError(t, err)
}

func TestRunnerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	again, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, metrics.calls, again.calls)

	r := newTestRunner(t, "counter", wasitest.Module(types.SentinelName, nil), Options{Metrics: metrics})
	ctx := context.Background()
	_, err = r.Call(ctx, wasmctx.CallInfo{}, "store", valueParams("x"))
	require.NoError(t, err)
	_, err = r.Call(ctx, wasmctx.CallInfo{}, "fail", nil)
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			label := family.GetName()
			for _, pair := range m.GetLabel() {
				label += "," + pair.GetValue()
			}
			counts[label] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["wasmlib_entrypoint_calls_total,counter,store,ok"])
	assert.Equal(t, 1.0, counts["wasmlib_entrypoint_calls_total,counter,fail,error"])
	assert.Greater(t, counts["wasmlib_host_calls_total,"+types.FuncHostSetBytes], 0.0)
}

func TestEngineCrossContractCall(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(core.ScChainID{1})
	alpha := newTestRunner(t, "alpha", wasitest.Module(types.SentinelName, wasitest.CallRequest("beta", "load")), Options{})
	beta := newTestRunner(t, "beta", wasitest.Module(types.SentinelName, nil), Options{})
	require.NoError(t, engine.Add(alpha))
	require.NoError(t, engine.Add(beta))
	require.Error(t, engine.Add(beta))
	assert.Equal(t, []string{"alpha", "beta"}, engine.Contracts())

	caller := core.NewScAgentID(core.ScAddress{9}, 0)
	_, err := engine.Call(ctx, caller, "beta", "store", valueParams("from beta"))
	require.NoError(t, err)

	results, err := engine.Call(ctx, caller, "alpha", "relay", nil)
	require.NoError(t, err)
	returned, err := dict.FromBytes(results.GetString("value"))
	require.NoError(t, err)
	assert.Equal(t, []byte("from beta"), returned.GetString("value"))

	// the nested call ran with alpha as the caller
	assert.Equal(t, core.NewHname("alpha"), beta.State().Info().Caller.Hname())

	_, err = engine.Call(ctx, caller, "gamma", "load", nil)
	require.Error(t, err)
}

func TestEngineRejectsReentrantCall(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(core.ScChainID{})
	self := newTestRunner(t, "self", wasitest.Module(types.SentinelName, wasitest.CallRequest("self", "load")), Options{})
	require.NoError(t, engine.Add(self))

	_, err := engine.Call(ctx, core.ScAgentID{}, "self", "relay", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-entrant")

	// the runner is released afterwards
	_, err = engine.Call(ctx, core.ScAgentID{}, "self", "load", nil)
	require.NoError(t, err)
}

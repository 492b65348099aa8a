package wasi

import (
	"context"
	"strings"
	"testing"

	wasmctx "github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/context/memory"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
	"github.com/govm-net/wasmlib/wasi/wasitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasMeter(t *testing.T) {
	g := gasMeter{limit: 10}
	g.charge(types.FuncHostGetKeyID, 5)
	assert.Equal(t, int64(2), g.used)
	g.charge(types.FuncHostSetBytes, -1)
	assert.Equal(t, int64(7), g.used)
	g.charge(types.FuncHostGetObjectID, 0)
	assert.Equal(t, int64(8), g.used)

	assert.Panics(t, func() { g.charge(types.FuncHostGetBytes, 64) })
	g.reset()
	assert.Equal(t, int64(0), g.used)

	unlimited := gasMeter{}
	assert.NotPanics(t, func() { unlimited.charge(types.FuncHostSetBytes, 1<<20) })
}

func TestRunnerOutOfGas(t *testing.T) {
	ctx := context.Background()
	wasm := wasitest.Module(types.SentinelName, nil)

	state := wasmctx.NewState("tiny", memory.NewBackend())
	_, err := NewRunner(ctx, "tiny", wasm, state, Options{Gas: 10})
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindOutOfGas, e.Kind)

	r := newTestRunner(t, "counter", wasm, Options{Gas: 31})
	_, err = r.Call(ctx, wasmctx.CallInfo{}, "store", valueParams("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(21), r.GasUsed())

	_, err = r.Call(ctx, wasmctx.CallInfo{}, "store", valueParams(strings.Repeat("x", 200)))
	require.Error(t, err)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindOutOfGas, e.Kind)

	// the budget is per invocation
	_, err = r.Call(ctx, wasmctx.CallInfo{}, "load", nil)
	require.NoError(t, err)
}

package wasi

import (
	"context"
	"testing"

	"github.com/govm-net/wasmlib/types"
	"github.com/govm-net/wasmlib/wasi/wasitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	info, err := Inspect(context.Background(), wasitest.Module(types.SentinelName, nil))
	require.NoError(t, err)

	assert.True(t, info.Compatible())
	require.Len(t, info.Imports, 4)
	assert.Equal(t, "WasmLib.hostGetKeyID(i32, i32) -> (i32)", info.Imports[0].String())
	assert.Equal(t, "WasmLib.hostSetBytes(i32, i32, i32, i32, i32) -> ()", info.Imports[3].String())

	require.Len(t, info.Exports, 2)
	assert.Equal(t, "on_call_entrypoint(i32) -> ()", info.Exports[0].String())
	assert.Equal(t, "on_load() -> ()", info.Exports[1].String())
	assert.Equal(t, []string{"memory"}, info.Memories)
}

func TestInspectEmptyModule(t *testing.T) {
	info, err := Inspect(context.Background(), []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.False(t, info.Compatible())
	assert.Equal(t, []string{"on_load", "on_call_entrypoint", "memory"}, info.Missing)
	assert.Empty(t, info.Unknown)
}

func TestInspectInvalidCode(t *testing.T) {
	_, err := Inspect(context.Background(), []byte("not wasm"))
	assert.Error(t, err)
}

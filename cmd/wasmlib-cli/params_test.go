package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{
		"name=alice",
		"amount:int64=-5",
		"count:uint16=0x10",
		"flag:bool=true",
		"raw:bytes=0x0102",
		"target:hname=counter",
		"empty=",
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("alice"), params.GetString("name"))
	assert.Equal(t, int64(-5), codec.Int64FromBytes(params.GetString("amount")))
	assert.Equal(t, uint16(16), codec.Uint16FromBytes(params.GetString("count")))
	assert.True(t, codec.BoolFromBytes(params.GetString("flag")))
	assert.Equal(t, []byte{1, 2}, params.GetString("raw"))
	assert.Equal(t, core.NewHname("counter").Bytes(), params.GetString("target"))
	assert.True(t, params.Exists([]byte("empty")))
	assert.Equal(t, 7, params.Len())
}

func TestParseParamsErrors(t *testing.T) {
	for _, arg := range []string{
		"novalue",
		"=value",
		"n:int8=300",
		"n:uint32=-1",
		"b:bool=maybe",
		"x:float=1.5",
		"a:address=notbase58!",
		strings.Repeat("k", 65536) + "=v",
	} {
		_, err := parseParams([]string{arg})
		assert.Error(t, err, arg[:min(len(arg), 32)])
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"hello"`, formatValue([]byte("hello")))
	assert.Equal(t, "0x0500000000000000", formatValue(codec.Int64ToBytes(5)))
	assert.Equal(t, "0x", formatValue(nil))
}

func TestHnameCommand(t *testing.T) {
	var out bytes.Buffer
	hnameCmd.SetOut(&out)
	require.NoError(t, hnameCmd.RunE(hnameCmd, []string{"counter"}))
	assert.Equal(t, core.NewHname("counter").String()+"\tcounter\n", out.String())
}

func TestPrintExports(t *testing.T) {
	var out bytes.Buffer
	printExports(&out, []string{"increment"}, []string{"getCounter"})
	assert.Contains(t, out.String(), "Funcs:\n")
	assert.Contains(t, out.String(), "0x0000  "+core.NewHname("increment").String()+"  increment")
	assert.Contains(t, out.String(), "Views:\n")
	assert.Contains(t, out.String(), "0x8000  "+core.NewHname("getCounter").String()+"  getCounter")
}

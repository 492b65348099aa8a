// Package wasitest assembles a small contract module by hand so the host bridge can be
// exercised without a guest toolchain.
//
// Its memory starts with the strings it uses:
//
//	0  sentinel  7  "store"  12 "fail"  16 "load"  20 "value"  25 "90%!"  29 "relay"
//
// 64..128 is a scratch buffer and a cross-contract call request is placed at 256.
//
// Entry points: store (call 0) copies param "value" into state and results, fail
// (call 1) reports "90%!" through the panic slot, relay (call 2) issues the embedded
// request and stores the returned dict bytes as result "value", load (view 0) copies
// state "value" into results.
package wasitest

import (
	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/types"
)

const (
	fnGetKeyID = iota
	fnGetObjectID
	fnGetBytes
	fnSetBytes
	fnOnLoad
	fnOnCall
	fnStore
	fnLoad
	fnFail
	fnRelay
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func section(id byte, items ...[]byte) []byte {
	payload := vec(items...)
	out := append([]byte{id}, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func funcType(params, results int) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(params))...)
	for i := 0; i < params; i++ {
		out = append(out, 0x7f)
	}
	out = append(out, uleb(uint32(results))...)
	for i := 0; i < results; i++ {
		out = append(out, 0x7f)
	}
	return out
}

type code []byte

func (c code) i32(v int32) code   { return append(append(c, 0x41), sleb(v)...) }
func (c code) call(f uint32) code { return append(append(c, 0x10), uleb(f)...) }
func (c code) get(l uint32) code  { return append(append(c, 0x20), uleb(l)...) }
func (c code) set(l uint32) code  { return append(append(c, 0x21), uleb(l)...) }
func (c code) op(b ...byte) code  { return append(c, b...) }

// when runs fn if local 0 equals index
func (c code) when(index int32, fn uint32) code {
	c = c.get(0)
	if index == 0 {
		c = c.op(0x45)
	} else {
		c = c.i32(index).op(0x46)
	}
	return c.op(0x04, 0x40).call(fn).op(0x0b)
}

func body(locals uint32, c code) []byte {
	var decl []byte
	if locals > 0 {
		decl = vec(append(uleb(locals), 0x7f))
	} else {
		decl = vec()
	}
	b := append(decl, c...)
	b = append(b, 0x0b)
	return append(uleb(uint32(len(b))), b...)
}

// copyValue copies "value" from the src container into every sink, the length lands in local 1
func copyValue(c code, src types.Key32, sinks ...types.Key32) code {
	c = c.i32(20).i32(5).call(fnGetKeyID).set(0)
	c = c.i32(int32(types.ObjectIDRoot)).i32(int32(src)).i32(int32(types.TypeMap)).call(fnGetObjectID).
		get(0).i32(int32(types.TypeBytes)).i32(64).i32(64).call(fnGetBytes).set(1)
	for _, sink := range sinks {
		c = c.i32(int32(types.ObjectIDRoot)).i32(int32(sink)).i32(int32(types.TypeMap)).call(fnGetObjectID).
			get(0).i32(int32(types.TypeBytes)).i32(64).get(1).call(fnSetBytes)
	}
	return c
}

// Module returns the contract binary. sentinel is written as the library version
// marker and request is what relay writes to the call slot.
func Module(sentinel string, request []byte) []byte {
	root := int32(types.ObjectIDRoot)
	str := int32(types.TypeString)

	onLoad := code{}.i32(root).i32(int32(types.KeyExports)).i32(int32(types.TypeMap)).call(fnGetObjectID).set(0)
	for _, e := range []struct{ key, ptr, size int32 }{
		{int32(types.KeyZzzzzzz), 0, int32(len(sentinel))},
		{0, 7, 5},
		{1, 12, 4},
		{2, 29, 5},
		{types.ExportViewFlag, 16, 4},
	} {
		onLoad = onLoad.get(0).i32(e.key).i32(str).i32(e.ptr).i32(e.size).call(fnSetBytes)
	}

	onCall := code{}.when(0, fnStore).when(1, fnFail).when(2, fnRelay).when(types.ExportViewFlag, fnLoad)
	store := copyValue(code{}, types.KeyParams, types.KeyState, types.KeyResults)
	load := copyValue(code{}, types.KeyState, types.KeyResults)
	fail := code{}.i32(root).i32(int32(types.KeyPanic)).i32(str).i32(25).i32(4).call(fnSetBytes)

	// KeyReturn is a root value, not a container
	relay := code{}.i32(root).i32(int32(types.KeyCall)).i32(int32(types.TypeBytes)).i32(256).i32(int32(len(request))).call(fnSetBytes).
		i32(20).i32(5).call(fnGetKeyID).set(0).
		i32(root).i32(int32(types.KeyReturn)).i32(int32(types.TypeBytes)).i32(64).i32(64).call(fnGetBytes).set(1).
		i32(root).i32(int32(types.KeyResults)).i32(int32(types.TypeMap)).call(fnGetObjectID).
		get(0).i32(int32(types.TypeBytes)).i32(64).get(1).call(fnSetBytes)

	data := make([]byte, 256+len(request))
	copy(data, sentinel)
	copy(data[7:], "storefailloadvalue90%!relay")
	copy(data[256:], request)

	var wasm []byte
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)
	wasm = append(wasm, section(1,
		funcType(2, 1), // 0 getKeyID
		funcType(3, 1), // 1 getObjectID
		funcType(5, 1), // 2 getBytes
		funcType(5, 0), // 3 setBytes
		funcType(0, 0), // 4
		funcType(1, 0), // 5 on_call_entrypoint
	)...)
	imp := func(field string, typeIdx uint32) []byte {
		out := append(name(types.HostModuleName), name(field)...)
		return append(append(out, 0x00), uleb(typeIdx)...)
	}
	wasm = append(wasm, section(2,
		imp(types.FuncHostGetKeyID, 0),
		imp(types.FuncHostGetObjectID, 1),
		imp(types.FuncHostGetBytes, 2),
		imp(types.FuncHostSetBytes, 3),
	)...)
	wasm = append(wasm, section(3, uleb(4), uleb(5), uleb(4), uleb(4), uleb(4), uleb(4))...)
	wasm = append(wasm, section(5, []byte{0x00, 0x01})...)
	exp := func(field string, kind byte, idx uint32) []byte {
		return append(append(name(field), kind), uleb(idx)...)
	}
	wasm = append(wasm, section(7,
		exp(types.ExportMemory, 0x02, 0),
		exp(types.ExportOnLoad, 0x00, fnOnLoad),
		exp(types.ExportOnCall, 0x00, fnOnCall),
	)...)
	wasm = append(wasm, section(10,
		body(1, onLoad),
		body(0, onCall),
		body(2, store),
		body(2, load),
		body(0, fail),
		body(2, relay),
	)...)
	segment := append([]byte{0x00, 0x41, 0x00, 0x0b}, uleb(uint32(len(data)))...)
	wasm = append(wasm, section(11, append(segment, data...))...)
	return wasm
}

// CallRequest encodes a call of function on contract without params
func CallRequest(contract, function string) []byte {
	return codec.StructToBytes(&core.CallRequest{
		Contract: core.NewHname(contract),
		Function: core.NewHname(function),
		Params:   dict.New().Bytes(),
	})
}


package core

import (
	"fmt"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// BaseContext holds the capabilities shared by calls and views
type BaseContext interface {
	Params() ScImmutableMap
	Results() ScMutableMap
	Caller() ScAgentID
	Contract() Hname
	ChainID() ScChainID
	Timestamp() int64
	Log(text string)
	Trace(text string)
	Panic(text string)
	Require(cond bool, text string)
}

// ViewContext is passed to views. State is read-only.
type ViewContext interface {
	BaseContext
	State() ScImmutableMap
}

// FuncContext is passed to calls
type FuncContext interface {
	BaseContext
	State() ScMutableMap
	Event(text string)
	Call(contract, function Hname, params *dict.Dict) *dict.Dict
}

type baseContext struct {
	mod *Module
}

func (c *baseContext) root() ObjectProxy {
	return c.mod.Root()
}

func (c *baseContext) Params() ScImmutableMap {
	return NewScImmutableMap(c.root().Child(types.KeyParams, types.TypeMap))
}

func (c *baseContext) Results() ScMutableMap {
	return NewScMutableMap(c.root().Child(types.KeyResults, types.TypeMap))
}

func (c *baseContext) Caller() ScAgentID {
	return NewScImmutable(c.root().Value(types.KeyCaller, types.TypeAgentID), AgentIDCodec).Value()
}

func (c *baseContext) Contract() Hname {
	return NewScImmutable(c.root().Value(types.KeyContract, types.TypeHname), HnameCodec).Value()
}

func (c *baseContext) ChainID() ScChainID {
	return NewScImmutable(c.root().Value(types.KeyChainID, types.TypeChainID), ChainIDCodec).Value()
}

func (c *baseContext) Timestamp() int64 {
	return NewScImmutable(c.root().Value(types.KeyTimestamp, types.TypeInt64), Int64Codec).Value()
}

func (c *baseContext) Log(text string) {
	c.root().Value(types.KeyLog, types.TypeString).Set([]byte(text))
}

func (c *baseContext) Trace(text string) {
	c.root().Value(types.KeyTrace, types.TypeString).Set([]byte(text))
}

func (c *baseContext) Panic(text string) {
	Panic(text)
}

func (c *baseContext) Require(cond bool, text string) {
	Require(cond, text)
}

type viewContext struct {
	baseContext
}

func (c *viewContext) State() ScImmutableMap {
	return NewScImmutableMap(c.root().Child(types.KeyState, types.TypeMap))
}

type funcContext struct {
	baseContext
}

func (c *funcContext) State() ScMutableMap {
	return NewScMutableMap(c.root().Child(types.KeyState, types.TypeMap))
}

func (c *funcContext) Event(text string) {
	c.root().Value(types.KeyEvent, types.TypeString).Set([]byte(text))
}

// Call invokes function on another contract and returns its results
func (c *funcContext) Call(contract, function Hname, params *dict.Dict) *dict.Dict {
	if params == nil {
		params = dict.New()
	}
	req := &CallRequest{Contract: contract, Function: function, Params: params.Bytes()}
	c.root().Value(types.KeyCall, types.TypeBytes).Set(codec.StructToBytes(req))

	ret := c.root().Value(types.KeyReturn, types.TypeBytes).Get()
	results, err := dict.FromBytes(ret)
	if err != nil {
		errors.New(errors.PhaseDecode, errors.KindInvalidData).Path("return").Cause(err).Abort()
	}
	return results
}

// CallRequest is what a contract writes to the call slot of the root object
type CallRequest struct {
	Contract Hname
	Function Hname
	Params   []byte
}

func (r *CallRequest) Encode(enc *codec.Encoder) {
	enc.FixedBytes(r.Contract.Bytes(), types.HnameLength).
		FixedBytes(r.Function.Bytes(), types.HnameLength).
		Bytes(r.Params)
}

// DecodeCallRequest decodes a CallRequest
func DecodeCallRequest(dec *codec.Decoder) *CallRequest {
	return &CallRequest{
		Contract: HnameFromBytes(dec.FixedBytes(types.HnameLength)),
		Function: HnameFromBytes(dec.FixedBytes(types.HnameLength)),
		Params:   dec.Bytes(),
	}
}

// Panic aborts the current call with a contract error
func Panic(text string) {
	errors.New(errors.PhaseContract, errors.KindPrecondition).Detail("%s", text).Abort()
}

// Require aborts the current call with text unless cond holds
func Require(cond bool, text string, args ...any) {
	if cond {
		return
	}
	if len(args) > 0 {
		text = fmt.Sprintf(text, args...)
	}
	Panic(text)
}

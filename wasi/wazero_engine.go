// Package wasi runs contracts built against wasmlib inside wazero.
//
// A Runner owns one wazero runtime per contract instance and bridges the WasmLib host
// module to a context.State. The Engine ties several runners together so contracts can
// call each other.
package wasi

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	wasmctx "github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options tunes a Runner
type Options struct {
	// MemoryLimitPages caps guest memory in 64KiB pages, 0 keeps the wazero default
	MemoryLimitPages uint32
	// Rate limits entry point invocations per second, 0 disables throttling
	Rate float64
	// Burst is the limiter bucket size, at least 1 when Rate is set
	Burst int
	// Gas is the host call budget of a single entry point invocation, 0 is unlimited
	Gas int64
	// Metrics receives call statistics, may be nil
	Metrics *Metrics
}

type export struct {
	index int32
	name  string
}

// Runner executes the entry points of one loaded contract.
// Calls are serialized; a Runner is safe for concurrent use.
type Runner struct {
	mu      sync.Mutex
	name    string
	hname   core.Hname
	state   *wasmctx.State
	runtime wazero.Runtime
	module  api.Module
	onCall  api.Function
	limiter *rate.Limiter
	metrics *Metrics
	gas     gasMeter
	log     *zap.Logger

	exports map[core.Hname]export
	indexes map[int32]export
	funcs   []string
	views   []string

	// ctx of the call in flight, used for nested calls issued by the guest
	callCtx context.Context
}

// NewRunner compiles code, links it against the WasmLib host module and runs its
// on_load export. The exports the contract registers are read back and checked against
// the library version sentinel.
func NewRunner(ctx context.Context, name string, code []byte, state *wasmctx.State, opts Options) (*Runner, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("contract code cannot be empty")
	}

	config := wazero.NewRuntimeConfig()
	if opts.MemoryLimitPages > 0 {
		config = config.WithMemoryLimitPages(opts.MemoryLimitPages)
	}

	r := &Runner{
		name:    name,
		hname:   core.NewHname(name),
		state:   state,
		runtime: wazero.NewRuntimeWithConfig(ctx, config),
		metrics: opts.Metrics,
		gas:     gasMeter{limit: opts.Gas},
		log:     Logger().With(zap.String("contract", name)),
	}
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	if err := r.instantiate(ctx, code); err != nil {
		r.runtime.Close(ctx)
		return nil, err
	}
	if err := r.load(ctx); err != nil {
		r.runtime.Close(ctx)
		return nil, err
	}
	return r, nil
}

func (r *Runner) instantiate(ctx context.Context, code []byte) error {
	compiled, err := r.runtime.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to compile WebAssembly module: %w", err)
	}

	if _, err := r.hostModule().Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r.runtime); err != nil {
		return fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	config := wazero.NewModuleConfig().
		WithName(r.name).
		WithStartFunctions("_initialize")
	module, err := r.runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return fmt.Errorf("failed to instantiate module: %w", err)
	}
	r.module = module

	r.onCall = module.ExportedFunction(types.ExportOnCall)
	if r.onCall == nil {
		return fmt.Errorf("%s not exported", types.ExportOnCall)
	}
	if module.Memory() == nil {
		return fmt.Errorf("%s not exported", types.ExportMemory)
	}
	return nil
}

func (r *Runner) load(ctx context.Context) error {
	onLoad := r.module.ExportedFunction(types.ExportOnLoad)
	if onLoad == nil {
		return fmt.Errorf("%s not exported", types.ExportOnLoad)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.callCtx = ctx
	r.gas.reset()
	_, err := onLoad.Call(ctx)
	r.callCtx = nil
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", types.ExportOnLoad, err)
	}
	if msg := r.state.TakePanic(); msg != "" {
		return errors.New(errors.PhaseLoad, errors.KindPrecondition).Path(r.name).Detail("%s", msg).Build()
	}

	names, err := r.state.Exports()
	if err != nil {
		return err
	}
	if names[types.KeyZzzzzzz] != types.SentinelName {
		return fmt.Errorf("contract %s: %w", r.name, errors.ErrVersionMismatch)
	}

	r.exports = make(map[core.Hname]export, len(names))
	r.indexes = make(map[int32]export, len(names))
	for key, name := range names {
		index := int32(key)
		if key == types.KeyZzzzzzz || index < 0 {
			continue
		}
		h := core.NewHname(name)
		if _, ok := r.exports[h]; ok {
			return errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Path(r.name, name).
				Detail("duplicate entry point").Build()
		}
		r.exports[h] = export{index: index, name: name}
		r.indexes[index] = r.exports[h]
	}
	r.funcs, r.views = r.indexNames(names)

	r.log.Info("contract loaded",
		zap.Int("funcs", len(r.funcs)),
		zap.Int("views", len(r.views)))
	return nil
}

func (r *Runner) indexNames(names map[types.Key32]string) (funcs, views []string) {
	for i := int32(0); ; i++ {
		name, ok := names[types.Key32(i)]
		if !ok {
			break
		}
		funcs = append(funcs, name)
	}
	for i := int32(0); ; i++ {
		name, ok := names[types.Key32(i|types.ExportViewFlag)]
		if !ok {
			break
		}
		views = append(views, name)
	}
	return funcs, views
}

// Name returns the contract name
func (r *Runner) Name() string {
	return r.name
}

// Hname returns the hash of the contract name
func (r *Runner) Hname() core.Hname {
	return r.hname
}

// State returns the host state the contract runs against
func (r *Runner) State() *wasmctx.State {
	return r.state
}

// Funcs returns the call names in index order
func (r *Runner) Funcs() []string {
	return r.funcs
}

// Views returns the view names in index order
func (r *Runner) Views() []string {
	return r.views
}

// Lookup returns the dispatch index of the entry point with hash h
func (r *Runner) Lookup(h core.Hname) (int32, bool) {
	e, ok := r.exports[h]
	return e.index, ok
}

// Call runs the entry point registered under function
func (r *Runner) Call(ctx context.Context, info wasmctx.CallInfo, function string, params *dict.Dict) (*dict.Dict, error) {
	e, ok := r.exports[core.NewHname(function)]
	if !ok {
		return nil, errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Path(r.name, function).
			Detail("unknown entry point").Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoke(ctx, info, e, params)
}

// CallIndex runs the entry point at dispatch index
func (r *Runner) CallIndex(ctx context.Context, info wasmctx.CallInfo, index int32, params *dict.Dict) (*dict.Dict, error) {
	e, ok := r.indexes[index]
	if !ok {
		return nil, errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
			Path(r.name).
			Detail("invalid dispatch index %#x", index).Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoke(ctx, info, e, params)
}

// tryCall is Call for nested invocations. It fails instead of waiting when the
// runner is already executing, which is always the case for re-entrant calls.
func (r *Runner) tryCall(ctx context.Context, info wasmctx.CallInfo, function core.Hname, params *dict.Dict) (*dict.Dict, error) {
	e, ok := r.exports[function]
	if !ok {
		return nil, errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Path(r.name).
			Detail("unknown entry point %s", function).Build()
	}
	if !r.mu.TryLock() {
		return nil, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path(r.name, e.name).
			Detail("contract is busy, re-entrant calls are not supported").Build()
	}
	defer r.mu.Unlock()
	return r.invoke(ctx, info, e, params)
}

func (r *Runner) invoke(ctx context.Context, info wasmctx.CallInfo, e export, params *dict.Dict) (results *dict.Dict, err error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	start := time.Now()
	defer func() {
		r.metrics.observeCall(r.name, e.name, start, err)
		if err != nil {
			r.log.Warn("call failed", zap.String("function", e.name), zap.Error(err))
		}
	}()

	if info.Contract == 0 {
		info.Contract = r.hname
	}
	if err := r.state.BeginCall(info, params); err != nil {
		return nil, fmt.Errorf("failed to prepare call: %w", err)
	}

	r.callCtx = ctx
	r.gas.reset()
	_, err = r.onCall.Call(ctx, api.EncodeI32(e.index))
	r.callCtx = nil
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", e.name, err)
	}
	if msg := r.state.TakePanic(); msg != "" {
		return nil, errors.New(errors.PhaseContract, errors.KindPrecondition).
			Path(r.name, e.name).
			Detail("%s", msg).Build()
	}

	results, err = r.state.Results()
	if err != nil {
		return nil, fmt.Errorf("failed to collect results: %w", err)
	}
	return results, nil
}

// GasUsed returns the gas charged by the last entry point invocation
func (r *Runner) GasUsed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gas.used
}

// Close releases the wazero runtime
func (r *Runner) Close(ctx context.Context) error {
	if err := r.runtime.Close(ctx); err != nil {
		return fmt.Errorf("failed to close runtime: %w", err)
	}
	return nil
}

// hostModule builds the WasmLib import module. Store failures are raised as panics,
// which wazero turns into an error returned from the guest call.
func (r *Runner) hostModule() wazero.HostModuleBuilder {
	builder := r.runtime.NewHostModuleBuilder(types.HostModuleName)

	builder.NewFunctionBuilder().
		WithParameterNames("keyPtr", "size").
		WithResultNames("keyID").
		WithFunc(func(_ context.Context, m api.Module, keyPtr, size int32) int32 {
			r.metrics.hostCall(types.FuncHostGetKeyID)
			r.gas.charge(types.FuncHostGetKeyID, size)
			key := readMemory(m, keyPtr, size)
			id, err := r.state.KeyID(key)
			if err != nil {
				panic(err)
			}
			return int32(id)
		}).
		Export(types.FuncHostGetKeyID)

	builder.NewFunctionBuilder().
		WithParameterNames("objID", "keyID", "typeID").
		WithResultNames("objID").
		WithFunc(func(_ context.Context, objID, keyID, typeID int32) int32 {
			r.metrics.hostCall(types.FuncHostGetObjectID)
			r.gas.charge(types.FuncHostGetObjectID, 0)
			id, err := r.state.ObjectID(types.ObjectID(objID), types.Key32(keyID), types.TypeID(typeID))
			if err != nil {
				panic(err)
			}
			return int32(id)
		}).
		Export(types.FuncHostGetObjectID)

	builder.NewFunctionBuilder().
		WithParameterNames("objID", "keyID", "typeID", "ptr", "size").
		WithResultNames("length").
		WithFunc(func(_ context.Context, m api.Module, objID, keyID, typeID, ptr, size int32) int32 {
			r.metrics.hostCall(types.FuncHostGetBytes)
			r.gas.charge(types.FuncHostGetBytes, size)
			value, ok, err := r.state.GetBytes(types.ObjectID(objID), types.Key32(keyID), types.TypeID(typeID))
			if err != nil {
				panic(err)
			}
			if !ok {
				return -1
			}
			if size < 0 {
				return 0
			}
			n := min(int32(len(value)), size)
			if n > 0 && !m.Memory().Write(uint32(ptr), value[:n]) {
				panic(fmt.Errorf("memory write out of range: ptr=%d size=%d", ptr, n))
			}
			return int32(len(value))
		}).
		Export(types.FuncHostGetBytes)

	builder.NewFunctionBuilder().
		WithParameterNames("objID", "keyID", "typeID", "ptr", "size").
		WithFunc(func(_ context.Context, m api.Module, objID, keyID, typeID, ptr, size int32) {
			r.metrics.hostCall(types.FuncHostSetBytes)
			r.gas.charge(types.FuncHostSetBytes, size)
			var err error
			if size < 0 {
				err = r.state.DelKey(types.ObjectID(objID), types.Key32(keyID), types.TypeID(typeID))
			} else {
				err = r.state.SetBytes(types.ObjectID(objID), types.Key32(keyID), types.TypeID(typeID), readMemory(m, ptr, size))
			}
			if err != nil {
				panic(err)
			}
		}).
		Export(types.FuncHostSetBytes)

	return builder
}

func readMemory(m api.Module, ptr, size int32) []byte {
	if size == 0 {
		return []byte{}
	}
	data, ok := m.Memory().Read(uint32(ptr), uint32(size))
	if !ok || size < 0 {
		panic(fmt.Errorf("memory read out of range: ptr=%d size=%d", ptr, size))
	}
	return bytes.Clone(data)
}

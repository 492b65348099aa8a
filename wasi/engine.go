package wasi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	wasmctx "github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"go.uber.org/zap"
)

var timeNow = time.Now

// Engine routes cross-contract calls between the runners added to it
type Engine struct {
	mu      sync.RWMutex
	chainID core.ScChainID
	runners map[core.Hname]*Runner
}

// NewEngine creates an engine for the chain chainID
func NewEngine(chainID core.ScChainID) *Engine {
	return &Engine{
		chainID: chainID,
		runners: make(map[core.Hname]*Runner),
	}
}

// Add registers r and routes the calls its contract issues through the engine
func (e *Engine) Add(r *Runner) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.runners[r.Hname()]; ok {
		return fmt.Errorf("contract %s already registered as %s", r.Name(), existing.Name())
	}
	e.runners[r.Hname()] = r
	r.State().SetCallHandler(func(caller core.Hname, req *core.CallRequest) (*dict.Dict, error) {
		return e.route(r.callCtx, caller, req)
	})
	Logger().Debug("contract registered", zap.String("contract", r.Name()), zap.Stringer("hname", r.Hname()))
	return nil
}

// Runner returns the runner of contract h
func (e *Engine) Runner(h core.Hname) (*Runner, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runners[h]
	return r, ok
}

// Contracts lists the registered contract names
func (e *Engine) Contracts() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.runners))
	for _, r := range e.runners {
		names = append(names, r.Name())
	}
	sort.Strings(names)
	return names
}

// Call runs function on contract with caller as the requesting agent
func (e *Engine) Call(ctx context.Context, caller core.ScAgentID, contract, function string, params *dict.Dict) (*dict.Dict, error) {
	r, ok := e.Runner(core.NewHname(contract))
	if !ok {
		return nil, fmt.Errorf("contract %s not found", contract)
	}
	return r.Call(ctx, e.callInfo(caller, r), function, params)
}

func (e *Engine) callInfo(caller core.ScAgentID, r *Runner) wasmctx.CallInfo {
	return wasmctx.CallInfo{
		Caller:    caller,
		Contract:  r.Hname(),
		ChainID:   e.chainID,
		Timestamp: timeNow().UnixNano(),
	}
}

func (e *Engine) route(ctx context.Context, caller core.Hname, req *core.CallRequest) (*dict.Dict, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target, ok := e.Runner(req.Contract)
	if !ok {
		return nil, fmt.Errorf("contract %s not found", req.Contract)
	}
	params, err := dict.FromBytes(req.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid call params: %w", err)
	}

	info := e.callInfo(core.NewScAgentID(e.chainID.Address(), caller), target)
	if from, ok := e.Runner(caller); ok {
		info.Timestamp = from.State().Info().Timestamp
	}
	Logger().Debug("cross-contract call",
		zap.Stringer("caller", caller),
		zap.Stringer("contract", req.Contract),
		zap.Stringer("function", req.Function))
	return target.tryCall(ctx, info, req.Function, params)
}

// Close closes every runner
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for h, r := range e.runners {
		if err := r.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.runners, h)
	}
	return firstErr
}

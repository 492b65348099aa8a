package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/govm-net/wasmlib/config"
	wasmctx "github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
	"github.com/govm-net/wasmlib/repository"
	"github.com/govm-net/wasmlib/wasi"
	"github.com/prometheus/client_golang/prometheus"

	// state backends register themselves
	_ "github.com/govm-net/wasmlib/context/db"
	_ "github.com/govm-net/wasmlib/context/memory"
)

// Engine is responsible for contract deployment and execution.
// Deployed code lives in the repository; contracts are instantiated on first use.
type Engine struct {
	mu          sync.Mutex
	config      config.Config
	codeManager *repository.Manager
	runners     *wasi.Engine
	metrics     *wasi.Metrics
}

// NewEngine creates a new contract engine
func NewEngine(cfg config.Config) (*Engine, error) {
	// Ensure configuration is valid
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	chainID, err := cfg.Chain()
	if err != nil {
		return nil, err
	}

	codeManager, err := repository.NewManager(cfg.Repository.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create code manager: %w", err)
	}

	e := &Engine{
		config:      cfg,
		codeManager: codeManager,
		runners:     wasi.NewEngine(chainID),
	}
	if cfg.MetricsEnabled() {
		if e.metrics, err = wasi.NewMetrics(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return e, nil
}

// Repository returns the code repository
func (e *Engine) Repository() *repository.Manager {
	return e.codeManager
}

// Deploy loads code as contract name, verifies it against the library version and stores it
func (e *Engine) Deploy(ctx context.Context, name string, code []byte) (*repository.ContractCode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.runners.Runner(core.NewHname(name)); ok {
		return nil, fmt.Errorf("contract already deployed: %s", name)
	}

	runner, err := e.newRunner(ctx, name, code)
	if err != nil {
		return nil, fmt.Errorf("contract deployment failed: %w", err)
	}
	stored, err := e.codeManager.RegisterCode(name, code, runner.Funcs(), runner.Views())
	if err != nil {
		closeRunner(ctx, runner)
		return nil, fmt.Errorf("failed to save contract code: %w", err)
	}
	if err := e.runners.Add(runner); err != nil {
		closeRunner(ctx, runner)
		return nil, err
	}
	return stored, nil
}

// Call runs function of contract on behalf of caller
func (e *Engine) Call(ctx context.Context, caller core.ScAgentID, contract, function string, params *dict.Dict) (*dict.Dict, error) {
	if _, err := e.runner(ctx, contract); err != nil {
		return nil, err
	}
	return e.runners.Call(ctx, caller, contract, function, params)
}

// Exports returns the call and view names of a deployed contract
func (e *Engine) Exports(name string) (funcs, views []string, err error) {
	code, err := e.codeManager.GetCode(name)
	if err != nil {
		return nil, nil, err
	}
	return code.Funcs, code.Views, nil
}

// Events returns the events emitted by a contract
func (e *Engine) Events(ctx context.Context, name string) ([]wasmctx.Event, error) {
	r, err := e.runner(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.State().Events()
}

func (e *Engine) runner(ctx context.Context, name string) (*wasi.Runner, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.runners.Runner(core.NewHname(name)); ok {
		return r, nil
	}
	code, err := e.codeManager.GetCode(name)
	if err != nil {
		return nil, fmt.Errorf("contract %s not deployed: %w", name, err)
	}
	r, err := e.newRunner(ctx, name, code.Code)
	if err != nil {
		return nil, err
	}
	if err := e.runners.Add(r); err != nil {
		closeRunner(ctx, r)
		return nil, err
	}
	return r, nil
}

func (e *Engine) newRunner(ctx context.Context, name string, code []byte) (*wasi.Runner, error) {
	backend, err := wasmctx.Get(wasmctx.BackendType(e.config.State.Backend), e.config.BackendParams(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}
	state := wasmctx.NewState(name, backend)

	runner, err := wasi.NewRunner(ctx, name, code, state, wasi.Options{
		MemoryLimitPages: e.config.Runner.MemoryLimitPages,
		Rate:             e.config.Runner.Rate,
		Burst:            e.config.Runner.Burst,
		Gas:              e.config.Runner.Gas,
		Metrics:          e.metrics,
	})
	if err != nil {
		state.Close()
		return nil, err
	}
	return runner, nil
}

func closeRunner(ctx context.Context, r *wasi.Runner) {
	r.Close(ctx)
	r.State().Close()
}

// Close closes the engine
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var states []*wasmctx.State
	for _, name := range e.runners.Contracts() {
		if r, ok := e.runners.Runner(core.NewHname(name)); ok {
			states = append(states, r.State())
		}
	}
	if err := e.runners.Close(ctx); err != nil {
		return fmt.Errorf("failed to close runners: %w", err)
	}
	for _, state := range states {
		if err := state.Close(); err != nil {
			return fmt.Errorf("failed to close state: %w", err)
		}
	}
	return nil
}

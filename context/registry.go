package context

import (
	"fmt"
	"sort"
	"sync"
)

// BackendType names a state backend implementation
type BackendType string

const (
	// MemoryBackendType keeps state in process memory
	MemoryBackendType BackendType = "memory"
	// DBBackendType keeps state in a sqlite database
	DBBackendType BackendType = "db"
)

// BackendConstructor creates a new Backend instance
type BackendConstructor func(params map[string]any) (Backend, error)

// Registry defines the interface for managing Backend implementations
type Registry interface {
	// Register adds a new Backend implementation to the registry
	Register(bt BackendType, constructor BackendConstructor) error
	// SetDefault sets the default backend type
	SetDefault(bt BackendType) error
	// Get returns a new instance of the specified backend type
	Get(bt BackendType, params map[string]any) (Backend, error)
	// DefaultBackendType returns the current default backend type
	DefaultBackendType() BackendType
	// ListRegistered returns all registered backend types
	ListRegistered() []BackendType
}

type registry struct {
	mu        sync.RWMutex
	backends  map[BackendType]BackendConstructor
	defaultBt BackendType
}

var defaultRegistry Registry

func init() {
	defaultRegistry = NewRegistry()
}

// NewRegistry creates an empty registry
func NewRegistry() Registry {
	return &registry{
		backends: make(map[BackendType]BackendConstructor),
	}
}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(bt BackendType, constructor BackendConstructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; exists {
		return fmt.Errorf("backend type %s already registered", bt)
	}

	r.backends[bt] = constructor
	return nil
}

func (r *registry) SetDefault(bt BackendType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; !exists {
		return fmt.Errorf("backend type %s not registered", bt)
	}

	r.defaultBt = bt
	return nil
}

func (r *registry) Get(bt BackendType, params map[string]any) (Backend, error) {
	if bt == "" {
		bt = r.DefaultBackendType()
	}

	r.mu.RLock()
	constructor, exists := r.backends[bt]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend type %s not found", bt)
	}

	backend, err := constructor(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", bt, err)
	}
	return backend, nil
}

func (r *registry) DefaultBackendType() BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultBt == "" {
		return MemoryBackendType
	}
	return r.defaultBt
}

func (r *registry) ListRegistered() []BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]BackendType, 0, len(r.backends))
	for bt := range r.backends {
		list = append(list, bt)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Package level functions that delegate to defaultRegistry

// Register adds a new Backend implementation to the registry
func Register(bt BackendType, constructor BackendConstructor) error {
	return GetRegistry().Register(bt, constructor)
}

// SetDefault sets the default backend type
func SetDefault(bt BackendType) error {
	return GetRegistry().SetDefault(bt)
}

// Get returns a new instance of the specified backend type; "" selects the default
func Get(bt BackendType, params map[string]any) (Backend, error) {
	return GetRegistry().Get(bt, params)
}

// DefaultBackendType returns the current default backend type
func DefaultBackendType() BackendType {
	return GetRegistry().DefaultBackendType()
}

// ListRegistered returns all registered backend types
func ListRegistered() []BackendType {
	return GetRegistry().ListRegistered()
}

// Package storage manages the pluggable StateStore backends the host
// can lend to the virtual machine.
package storage

import (
	"fmt"
	"sync"

	"github.com/ledgervm/vm/core"
)

// StoreType identifies a StateStore implementation.
type StoreType string

const (
	// MemoryStoreType is the in-memory map implementation.
	MemoryStoreType StoreType = "memory"
	// DBStoreType is the sqlite-backed implementation.
	DBStoreType StoreType = "db"
	// LevelDBStoreType is the leveldb-backed implementation.
	LevelDBStoreType StoreType = "leveldb"
)

// Constructor creates a new StateStore instance from backend-specific
// parameters.
type Constructor func(params map[string]any) (core.StateStore, error)

// Registry manages the available StateStore implementations.
type Registry interface {
	// Register adds a new StateStore implementation to the registry
	Register(st StoreType, constructor Constructor) error
	// SetDefault sets the default store type
	SetDefault(st StoreType) error
	// Get returns a new instance of the specified store type
	Get(st StoreType, params map[string]any) (core.StateStore, error)
	// GetDefault returns a new instance of the default store type
	GetDefault(params map[string]any) (core.StateStore, error)
	// ListRegistered returns a list of all registered store types
	ListRegistered() []StoreType
}

type registry struct {
	mu        sync.RWMutex
	stores    map[StoreType]Constructor
	defaultSt StoreType
}

var defaultRegistry Registry

func init() {
	defaultRegistry = &registry{
		stores: make(map[StoreType]Constructor),
	}
}

// GetRegistry returns the global Registry instance.
func GetRegistry() Registry {
	return defaultRegistry
}

// Register adds a constructor to the global registry; backends call it
// from their init functions.
func Register(st StoreType, constructor Constructor) error {
	return defaultRegistry.Register(st, constructor)
}

// Get creates a store of the given type from the global registry.
func Get(st StoreType, params map[string]any) (core.StateStore, error) {
	return defaultRegistry.Get(st, params)
}

func (r *registry) Register(st StoreType, constructor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[st]; exists {
		return fmt.Errorf("store type %s already registered", st)
	}

	r.stores[st] = constructor
	return nil
}

func (r *registry) SetDefault(st StoreType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[st]; !exists {
		return fmt.Errorf("store type %s not registered", st)
	}

	r.defaultSt = st
	return nil
}

func (r *registry) Get(st StoreType, params map[string]any) (core.StateStore, error) {
	r.mu.RLock()
	constructor, exists := r.stores[st]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("store type %s not found", st)
	}

	return constructor(params)
}

func (r *registry) GetDefault(params map[string]any) (core.StateStore, error) {
	r.mu.RLock()
	st := r.defaultSt
	r.mu.RUnlock()

	if st == "" {
		st = MemoryStoreType
	}
	return r.Get(st, params)
}

func (r *registry) ListRegistered() []StoreType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]StoreType, 0, len(r.stores))
	for st := range r.stores {
		types = append(types, st)
	}
	return types
}

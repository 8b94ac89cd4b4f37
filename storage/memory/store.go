// Package memory provides the in-memory StateStore backend, used by
// tests and single-process hosts.
package memory

import (
	"bytes"
	"sync"

	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/storage"
)

// Store keeps state in a plain map. Safe for concurrent use, though
// the engine itself never shares a store between executions.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func init() {
	storage.Register(storage.MemoryStoreType, func(params map[string]any) (core.StateStore, error) {
		return NewStore(), nil
	})
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[string(key)]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(value), nil
}

func (s *Store) Set(key []byte, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = bytes.Clone(value)
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns every stored key. Test helper.
func (s *Store) Keys() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([][]byte, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, []byte(k))
	}
	return keys
}

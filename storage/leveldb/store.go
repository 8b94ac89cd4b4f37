// Package leveldb provides the leveldb-backed StateStore.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/storage"
)

const defaultDBPath = "./state.ldb"

// Store implements core.StateStore on a leveldb database.
type Store struct {
	db *leveldb.DB
}

func init() {
	storage.Register(storage.LevelDBStoreType, NewStore)
}

// NewStore opens (or creates) the leveldb database named by
// params["db_path"].
func NewStore(params map[string]any) (core.StateStore, error) {
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}

	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state entry: %w", err)
	}
	return value, nil
}

func (s *Store) Set(key []byte, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("failed to write state entry: %w", err)
	}
	return nil
}

func (s *Store) Delete(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("failed to delete state entry: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Package db provides the sqlite-backed StateStore using GORM.
package db

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/storage"
)

const defaultDBPath = "./state.db"

// DBStateEntry is one persisted key/value pair. Keys are arbitrary
// byte sequences, stored hex-encoded so sqlite indexes them as text.
type DBStateEntry struct {
	gorm.Model
	Key   string `gorm:"column:state_key;not null;uniqueIndex;size:512"`
	Value []byte `gorm:"column:state_value;type:blob;not null"`
}

// TableName specifies the table name for DBStateEntry.
func (DBStateEntry) TableName() string {
	return "state_entries"
}

// Store implements core.StateStore on sqlite via GORM.
type Store struct {
	db *gorm.DB
}

func init() {
	storage.Register(storage.DBStoreType, NewStore)
}

// NewStore opens (or creates) the sqlite database named by
// params["db_path"] and migrates the schema.
func NewStore(params map[string]any) (core.StateStore, error) {
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := gdb.AutoMigrate(&DBStateEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: gdb}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var entry DBStateEntry
	err := s.db.Where("state_key = ?", hex.EncodeToString(key)).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state entry: %w", err)
	}
	return entry.Value, nil
}

func (s *Store) Set(key []byte, value []byte) error {
	encoded := hex.EncodeToString(key)

	var entry DBStateEntry
	err := s.db.Where("state_key = ?", encoded).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry = DBStateEntry{Key: encoded, Value: value}
		if err := s.db.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create state entry: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read state entry: %w", err)
	default:
		entry.Value = value
		if err := s.db.Save(&entry).Error; err != nil {
			return fmt.Errorf("failed to update state entry: %w", err)
		}
		return nil
	}
}

func (s *Store) Delete(key []byte) error {
	err := s.db.Where("state_key = ?", hex.EncodeToString(key)).Delete(&DBStateEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete state entry: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

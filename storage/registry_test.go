package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervm/vm/core"
)

type nullStore struct{}

func (nullStore) Get(key []byte) ([]byte, error) { return nil, nil }

func (nullStore) Set(key, value []byte) error { return nil }

func (nullStore) Delete(key []byte) error { return nil }

func (nullStore) Close() error { return nil }

func nullConstructor(params map[string]any) (core.StateStore, error) {
	return nullStore{}, nil
}

func TestRegisterAndGet(t *testing.T) {
	require.NoError(t, Register("null", nullConstructor))

	store, err := Get("null", nil)
	require.NoError(t, err)
	assert.NotNil(t, store)

	assert.Contains(t, GetRegistry().ListRegistered(), StoreType("null"))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	require.NoError(t, Register("null-dup", nullConstructor))
	assert.Error(t, Register("null-dup", nullConstructor))
}

func TestUnknownTypeFails(t *testing.T) {
	_, err := Get("no-such-backend", nil)
	assert.Error(t, err)

	assert.Error(t, GetRegistry().SetDefault("no-such-backend"))
}

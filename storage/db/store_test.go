package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/storage/storagetest"
)

func newTestStore(t *testing.T) core.StateStore {
	store, err := NewStore(map[string]any{
		"db_path": filepath.Join(t.TempDir(), "state.db"),
	})
	require.NoError(t, err)
	return store
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, newTestStore)
}

func TestReopenKeepsState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(map[string]any{"db_path": dbPath})
	require.NoError(t, err)
	require.NoError(t, store.Set([]byte("counter"), []byte{0, 1}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(map[string]any{"db_path": dbPath})
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get([]byte("counter"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1}, value)
}

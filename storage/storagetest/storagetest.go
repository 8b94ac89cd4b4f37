// Package storagetest provides the conformance suite every StateStore
// backend must pass.
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervm/vm/core"
)

// Run exercises the StateStore contract against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) core.StateStore) {
	t.Run("MissingKeyReadsEmpty", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		value, err := store.Get([]byte("never written"))
		require.NoError(t, err)
		assert.Empty(t, value)
	})

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		key := []byte{'f', 0x07, 'c', 'o', 'u', 'n', 't', 'e', 'r'}
		require.NoError(t, store.Set(key, []byte{0, 42}))

		value, err := store.Get(key)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 42}, value)
	})

	t.Run("OverwriteReplacesValue", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		key := []byte("field")
		require.NoError(t, store.Set(key, []byte("first")))
		require.NoError(t, store.Set(key, []byte("second")))

		value, err := store.Get(key)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), value)
	})

	t.Run("DeleteRemovesKey", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		key := []byte("field")
		require.NoError(t, store.Set(key, []byte("value")))
		require.NoError(t, store.Delete(key))

		value, err := store.Get(key)
		require.NoError(t, err)
		assert.Empty(t, value)
	})

	t.Run("DeleteMissingKeyIsNoError", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		assert.NoError(t, store.Delete([]byte("never written")))
	})

	t.Run("BinaryKeysAreDistinct", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		a := []byte{'f', 0x01, 'a', 0x00, 'x'}
		b := []byte{'f', 0x01, 'a', 0xff, 'x'}
		require.NoError(t, store.Set(a, []byte("one")))
		require.NoError(t, store.Set(b, []byte("two")))

		va, err := store.Get(a)
		require.NoError(t, err)
		vb, err := store.Get(b)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), va)
		assert.Equal(t, []byte("two"), vb)
	})
}

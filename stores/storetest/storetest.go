// Package storetest holds the behaviour every KeyValueStore backend must
// share. Backend tests call Run with a fresh store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/nemochat-go"
)

// Backend is what every store in stores/ implements.
type Backend interface {
	nemochat.KeyValueStore
	nemochat.KeyDeleter
}

// Run exercises kv with the operations a Chat performs.
func Run(t *testing.T, kv Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "absent")
		assert.ErrorIs(t, err, nemochat.ErrKeyNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, kv.Set(ctx, "k", []byte("v2")))
		got, err = kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("binary safe", func(t *testing.T) {
		value := []byte{0, 1, 2, 0xff, '\n', '\n'}
		require.NoError(t, kv.Set(ctx, "bin", value))
		got, err := kv.Get(ctx, "bin")
		require.NoError(t, err)
		assert.Equal(t, value, got)
	})

	t.Run("conversation snapshot", func(t *testing.T) {
		store := nemochat.NewStore()
		h, err := store.Submit("Hi")
		require.NoError(t, err)
		h.AppendContent("Hello, 世界")
		store.Finalize(h)

		require.NoError(t, nemochat.SaveSnapshot(ctx, kv, "conv", store.Snapshot()))

		fresh := nemochat.NewStore()
		snap, found, err := nemochat.LoadSnapshot(ctx, kv, "conv", fresh.Snapshot())
		require.NoError(t, err)
		require.True(t, found)
		require.NoError(t, fresh.Restore(snap))
		assert.Equal(t, store.Messages(), fresh.Messages())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "gone", []byte("v")))
		require.NoError(t, kv.Delete(ctx, "gone"))

		_, err := kv.Get(ctx, "gone")
		assert.ErrorIs(t, err, nemochat.ErrKeyNotFound)

		// Missing keys delete cleanly
		assert.NoError(t, kv.Delete(ctx, "gone"))
	})

	t.Run("forget conversation", func(t *testing.T) {
		require.NoError(t, nemochat.DeleteSnapshot(ctx, kv, "conv"))

		_, found, err := nemochat.LoadSnapshot(ctx, kv, "conv", nemochat.NewStore().Snapshot())
		require.NoError(t, err)
		assert.False(t, found)
	})
}

package state

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the observable contract both backends share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

		value, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), value)
	})

	t.Run("missing key", func(t *testing.T) {
		store := newStore(t)
		_, ok, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)

		exists, err := store.Exists(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("overwrite", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", []byte("one"), 0))
		require.NoError(t, store.Set(ctx, "k", []byte("two"), 0))

		value, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("two"), value)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, store.Delete(ctx, "k"))

		exists, err := store.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)

		// Deleting an absent key is not an error.
		require.NoError(t, store.Delete(ctx, "k"))
	})

	t.Run("ttl expiry", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 50*time.Millisecond))

		time.Sleep(10 * time.Millisecond)
		_, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok, "value must be visible before its deadline")

		time.Sleep(190 * time.Millisecond)
		_, ok, err = store.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok, "value must be invisible after its deadline")

		exists, err := store.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("concurrent access", func(t *testing.T) {
		store := newStore(t)
		done := make(chan struct{})
		for i := 0; i < 8; i++ {
			go func(i int) {
				defer func() { done <- struct{}{} }()
				key := fmt.Sprintf("key-%d", i)
				for j := 0; j < 20; j++ {
					store.Set(ctx, key, []byte(fmt.Sprintf("%d", j)), 0)
					store.Get(ctx, key)
					store.Exists(ctx, key)
				}
			}(i)
		}
		for i := 0; i < 8; i++ {
			<-done
		}
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		store := NewMemoryStore()
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), false)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLiteStore(path, false)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "durable", []byte("payload"), 0))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, false)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "durable")
	require.NoError(t, err)
	require.True(t, ok, "persistent backend must survive restart")
	assert.Equal(t, []byte("payload"), value)
}

func TestMemoryStore_BudgetEviction(t *testing.T) {
	ctx := context.Background()
	// Tiny budget: inserting past it evicts the oldest keys of the shard.
	store := NewMemoryStoreWithBudget(16 * memoryShardCount)

	big := make([]byte, 12)
	for i := 0; i < 50; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("key-%02d", i), big, 0))
	}

	live := 0
	for i := 0; i < 50; i++ {
		if ok, _ := store.Exists(ctx, fmt.Sprintf("key-%02d", i)); ok {
			live++
		}
	}
	assert.Less(t, live, 50, "budget must force eviction")
	assert.Greater(t, live, 0, "newest entries must survive")
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "k", []byte("abc"), 0))

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	value[0] = 'z'

	again, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "stored value must not alias reads")
}

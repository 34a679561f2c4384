package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-editor-be/internal/repository/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(time.Minute, time.Minute)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), contract.DefaultExpiration))

	val, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), val)

	require.NoError(t, store.Delete(ctx, "a"))
	_, found, _ = store.Get(ctx, "a")
	assert.False(t, found)
}

func TestKVStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(time.Minute, time.Minute)

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, contract.NoExpiration))
	value[0] = 'z'

	got, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestKVStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(time.Minute, time.Minute)

	ok, err := store.CompareAndSwap(ctx, "lock", nil, []byte("v1"), contract.DefaultExpiration)
	require.NoError(t, err)
	assert.True(t, ok, "absent key should accept nil-old swap")

	ok, _ = store.CompareAndSwap(ctx, "lock", nil, []byte("v2"), contract.DefaultExpiration)
	assert.False(t, ok, "present key should reject nil-old swap")

	ok, _ = store.CompareAndSwap(ctx, "lock", []byte("other"), []byte("v2"), contract.DefaultExpiration)
	assert.False(t, ok)

	ok, _ = store.CompareAndSwap(ctx, "lock", []byte("v1"), []byte("v2"), contract.DefaultExpiration)
	assert.True(t, ok)

	got, _, _ := store.Get(ctx, "lock")
	assert.Equal(t, "v2", string(got))
}

func TestKVStore_CompareAndSwapSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(time.Minute, time.Minute)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.CompareAndSwap(ctx, "k", nil, []byte("x"), contract.DefaultExpiration); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestKVStore_KeysByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(time.Minute, time.Minute)

	_ = store.Set(ctx, "l1:s1:a", []byte("1"), contract.DefaultExpiration)
	_ = store.Set(ctx, "l1:s1:b", []byte("1"), contract.DefaultExpiration)
	_ = store.Set(ctx, "l1:s2:a", []byte("1"), contract.DefaultExpiration)

	keys, err := store.Keys(ctx, "l1:s1:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"l1:s1:a", "l1:s1:b"}, keys)

	n, err := contract.DeletePrefix(ctx, store, "l1:s1:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.ItemCount())
}

func TestKVStore_OnEvicted(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(time.Minute, time.Minute)

	evicted := make(chan string, 1)
	store.OnEvicted(func(key string) { evicted <- key })

	_ = store.Set(ctx, "session:1", []byte("{}"), contract.DefaultExpiration)
	_ = store.Delete(ctx, "session:1")

	select {
	case key := <-evicted:
		assert.Equal(t, "session:1", key)
	case <-time.After(time.Second):
		t.Fatal("eviction callback not fired")
	}
}

package implementation

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"ai-editor-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RedisKVStore {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("Skipping integration test: REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	require.NoError(t, client.Ping(context.Background()).Err())

	namespace := "test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, namespace+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})
	return NewRedisKVStore(client, namespace, time.Minute)
}

func TestRedisKVStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "l1:s:a", []byte("1"), contract.NoExpiration))
	require.NoError(t, store.Set(ctx, "l1:s:b", []byte("2"), contract.DefaultExpiration))
	require.NoError(t, store.Set(ctx, "l2:d:a", []byte("3"), time.Second*30))

	val, found, err := store.Get(ctx, "l1:s:a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", string(val))

	keys, err := store.Keys(ctx, "l1:s:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"l1:s:a", "l1:s:b"}, keys)

	n, err := contract.DeletePrefix(ctx, store, "l1:s:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err = store.Get(ctx, "l1:s:a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisKVStore_CompareAndSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.CompareAndSwap(ctx, "lock", nil, []byte("v1"), contract.DefaultExpiration)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwap(ctx, "lock", nil, []byte("v2"), contract.DefaultExpiration)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSwap(ctx, "lock", []byte("other"), []byte("v2"), contract.DefaultExpiration)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSwap(ctx, "lock", []byte("v1"), []byte("v2"), contract.DefaultExpiration)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwap(ctx, "missing", []byte("v1"), []byte("v2"), contract.DefaultExpiration)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKVStore_TTLSentinels(t *testing.T) {
	store := NewRedisKVStore(nil, "ns:", time.Minute)

	assert.Equal(t, time.Minute, store.ttl(contract.DefaultExpiration))
	assert.Equal(t, time.Duration(0), store.ttl(contract.NoExpiration))
	assert.Equal(t, 5*time.Second, store.ttl(5*time.Second))
	assert.Equal(t, "ns:k", store.key("k"))
}

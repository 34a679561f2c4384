package contract

import (
	"context"
	"encoding/json"
	"time"
)

// TTL sentinels shared by every KVStore backend
const (
	DefaultExpiration time.Duration = 0  // Use the backend's configured default
	NoExpiration      time.Duration = -1 // Keep until deleted
)

// KVStore is the ephemeral key-value contract behind the cache tiers and the session store.
// A single instance uses the in-process backend; several instances can share redis.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// CompareAndSwap writes next only if the stored value equals old.
	// A nil old means "only if the key is absent".
	CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// GetJSON loads and decodes a value
func GetJSON[T any](ctx context.Context, store KVStore, key string) (*T, []byte, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return nil, nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, err
	}
	return &out, raw, nil
}

// SetJSON encodes and stores a value
func SetJSON(ctx context.Context, store KVStore, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw, ttl)
}

// DeletePrefix removes every key starting with prefix
func DeletePrefix(ctx context.Context, store KVStore, prefix string) (int, error) {
	keys, err := store.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

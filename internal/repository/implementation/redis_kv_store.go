package implementation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"ai-editor-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

// RedisKVStore shares cache and session state between instances.
// Keys are namespaced so several deployments can share one redis database.
type RedisKVStore struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
}

var _ contract.KVStore = (*RedisKVStore)(nil)

func NewRedisKVStore(client *redis.Client, namespace string, defaultTTL time.Duration) *RedisKVStore {
	return &RedisKVStore{
		client:     client,
		namespace:  namespace,
		defaultTTL: defaultTTL,
	}
}

func (s *RedisKVStore) key(k string) string {
	return s.namespace + k
}

// ttl maps the contract sentinels onto redis semantics (0 = persist)
func (s *RedisKVStore) ttl(t time.Duration) time.Duration {
	switch {
	case t == contract.DefaultExpiration:
		return s.defaultTTL
	case t < 0:
		return 0
	default:
		return t
	}
}

func (s *RedisKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl(ttl)).Err()
}

func (s *RedisKVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisKVStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	k := s.key(key)
	if old == nil {
		return s.client.SetNX(ctx, k, next, s.ttl(ttl)).Result()
	}

	swapped := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(current, old) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, s.ttl(ttl))
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *RedisKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"ai-editor-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// KVStore keeps values in process memory.
// Expired items are purged by go-cache's janitor; mutations are serialized so
// CompareAndSwap is atomic with respect to Set and Delete.
type KVStore struct {
	cache *cache.Cache
	mu    sync.Mutex
}

var _ contract.KVStore = (*KVStore)(nil)

// NewKVStore creates a store whose items expire after defaultTTL and
// are purged every cleanupInterval
func NewKVStore(defaultTTL, cleanupInterval time.Duration) *KVStore {
	return &KVStore{
		cache: cache.New(defaultTTL, cleanupInterval),
	}
}

// OnEvicted registers a callback fired when a key expires or is deleted.
// The callback runs on its own goroutine and may use the store.
func (s *KVStore) OnEvicted(fn func(key string)) {
	s.cache.OnEvicted(func(key string, _ interface{}) {
		go fn(key)
	})
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if x, found := s.cache.Get(key); found {
		return clone(x.([]byte)), true, nil
	}
	return nil, false, nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, clone(value), ttl)
	return nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}

func (s *KVStore) CompareAndSwap(_ context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.cache.Get(key)
	if old == nil {
		if found {
			return false, nil
		}
		s.cache.Set(key, clone(next), ttl)
		return true, nil
	}
	if !found || !bytes.Equal(current.([]byte), old) {
		return false, nil
	}
	s.cache.Set(key, clone(next), ttl)
	return true, nil
}

func (s *KVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// ItemCount reports the number of live items, including expired ones not yet purged
func (s *KVStore) ItemCount() int {
	return s.cache.ItemCount()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Package cache memoizes classifier output per session (L1) and per document (L2).
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/internal/repository/contract"
	"ai-editor-be/pkg/ai/intent"

	"github.com/pgvector/pgvector-go"
)

// Layer names the tier that served a hit
type Layer string

const (
	LayerNone Layer = ""
	LayerL1   Layer = "L1"
	LayerL2   Layer = "L2"
)

// EntryState is the lifecycle of an L2 record
type EntryState string

const (
	StateAvailable EntryState = "available"
	StateComputing EntryState = "computing"
	StateStale     EntryState = "stale"
)

// Config holds cache lifetimes
type Config struct {
	L2TTL   time.Duration
	LockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		L2TTL:   10 * time.Minute,
		LockTTL: 30 * time.Second,
	}
}

// L2Entry is the document-scoped record.
// A computing entry doubles as the compute lock; CreatedAt is the lock time.
type L2Entry struct {
	State     EntryState         `json:"state"`
	Value     *intent.RawPayload `json:"value,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	Hits      int                `json:"hits"`
	Embedding []float32          `json:"embedding,omitempty"`
}

// LookupResult reports where a value was found
type LookupResult struct {
	Hit       bool
	Layer     Layer
	Value     *intent.RawPayload
	Computing bool // an L2 compute lock is held by another request
}

// Stats are process-lifetime counters
type Stats struct {
	L1Hits int64 `json:"l1_hits"`
	L2Hits int64 `json:"l2_hits"`
	Misses int64 `json:"misses"`
}

// TwoTierCache stores validated classifier payloads.
// Store errors are logged and degrade to misses; the cache never fails a request.
type TwoTierCache struct {
	store   contract.KVStore
	config  Config
	logger  logger.ILogger
	matcher SemanticMatcher
	now     func() time.Time

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

func NewTwoTierCache(store contract.KVStore, config Config, log logger.ILogger) *TwoTierCache {
	defaults := DefaultConfig()
	if config.L2TTL <= 0 {
		config.L2TTL = defaults.L2TTL
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &TwoTierCache{
		store:   store,
		config:  config,
		logger:  log,
		matcher: DisabledSemanticMatcher{},
		now:     time.Now,
	}
}

// WithClock replaces the time source; intended for tests
func (c *TwoTierCache) WithClock(now func() time.Time) *TwoTierCache {
	c.now = now
	return c
}

// WithSemanticMatcher installs a similarity matcher consulted after an exact L2 miss
func (c *TwoTierCache) WithSemanticMatcher(m SemanticMatcher) *TwoTierCache {
	if m != nil {
		c.matcher = m
	}
	return c
}

// Lookup checks L1 then L2. An L2 hit is promoted into L1.
func (c *TwoTierCache) Lookup(ctx context.Context, key Key) LookupResult {
	if key.SessionID != "" {
		value, _, err := contract.GetJSON[intent.RawPayload](ctx, c.store, key.l1())
		if err != nil {
			c.logError("L1 read failed", key, err)
		} else if value != nil {
			c.l1Hits.Add(1)
			return LookupResult{Hit: true, Layer: LayerL1, Value: value}
		}
	}

	result := c.lookupL2(ctx, key)
	if !result.Hit && !result.Computing {
		if instrHash, ok := c.matcher.Match(ctx, key.DocumentHash, pgvector.NewVector(nil)); ok {
			similar := key
			similar.InstructionHash = instrHash
			result = c.lookupL2(ctx, similar)
		}
	}

	if !result.Hit {
		c.misses.Add(1)
		return result
	}

	c.l2Hits.Add(1)
	if key.SessionID != "" {
		if err := contract.SetJSON(ctx, c.store, key.l1(), result.Value, contract.NoExpiration); err != nil {
			c.logError("L1 promotion failed", key, err)
		}
	}
	return result
}

func (c *TwoTierCache) lookupL2(ctx context.Context, key Key) LookupResult {
	entry, _, err := contract.GetJSON[L2Entry](ctx, c.store, key.l2())
	if err != nil {
		c.logError("L2 read failed", key, err)
		return LookupResult{}
	}
	if entry == nil {
		return LookupResult{}
	}

	now := c.now()
	switch {
	case entry.State == StateComputing:
		return LookupResult{Computing: now.Sub(entry.CreatedAt) < c.config.LockTTL}

	case entry.State == StateStale, !now.Before(entry.ExpiresAt), entry.Value == nil:
		if err := c.store.Delete(ctx, key.l2()); err != nil {
			c.logError("L2 stale delete failed", key, err)
		}
		return LookupResult{}
	}

	entry.Hits++
	if ttl := entry.ExpiresAt.Sub(now); ttl > 0 {
		if err := contract.SetJSON(ctx, c.store, key.l2(), entry, ttl); err != nil {
			c.logError("L2 hit counter update failed", key, err)
		}
	}
	return LookupResult{Hit: true, Layer: LayerL2, Value: entry.Value}
}

// Store writes a value to both tiers. Writing L2 replaces any compute lock.
func (c *TwoTierCache) Store(ctx context.Context, key Key, value intent.RawPayload) error {
	if key.SessionID != "" {
		if err := contract.SetJSON(ctx, c.store, key.l1(), value, contract.NoExpiration); err != nil {
			return err
		}
	}

	now := c.now()
	entry := L2Entry{
		State:     StateAvailable,
		Value:     &value,
		CreatedAt: now,
		ExpiresAt: now.Add(c.config.L2TTL),
	}
	return contract.SetJSON(ctx, c.store, key.l2(), entry, c.config.L2TTL)
}

// AcquireComputeLock claims the right to classify key.
// It fails while another computing record is younger than the lock TTL or a fresh value exists.
// The claim is written with compare-and-swap against the record that was read, so two racing
// callers cannot both win; a loser is expected to re-read once and then compute independently.
func (c *TwoTierCache) AcquireComputeLock(ctx context.Context, key Key) bool {
	now := c.now()
	entry, current, err := contract.GetJSON[L2Entry](ctx, c.store, key.l2())
	if err != nil && current == nil {
		c.logError("lock read failed", key, err)
		return false
	}

	if entry != nil {
		switch entry.State {
		case StateComputing:
			if now.Sub(entry.CreatedAt) < c.config.LockTTL {
				return false
			}
		case StateAvailable:
			if now.Before(entry.ExpiresAt) {
				return false
			}
		}
	}

	lock := L2Entry{
		State:     StateComputing,
		CreatedAt: now,
		ExpiresAt: now.Add(c.config.LockTTL),
	}
	next, err := json.Marshal(lock)
	if err != nil {
		return false
	}

	ok, err := c.store.CompareAndSwap(ctx, key.l2(), current, next, c.config.LockTTL)
	if err != nil {
		c.logError("lock write failed", key, err)
		return false
	}
	if !ok {
		c.logger.Debug("CACHE", "Compute lock race lost", map[string]interface{}{
			"document_hash":    key.DocumentHash,
			"instruction_hash": key.InstructionHash,
		})
	}
	return ok
}

// ReleaseComputeLock drops a computing record; available values are left in place
func (c *TwoTierCache) ReleaseComputeLock(ctx context.Context, key Key) {
	entry, _, err := contract.GetJSON[L2Entry](ctx, c.store, key.l2())
	if err != nil || entry == nil || entry.State != StateComputing {
		return
	}
	if err := c.store.Delete(ctx, key.l2()); err != nil {
		c.logError("lock release failed", key, err)
	}
}

// MarkStale flags an L2 value so the next lookup drops it
func (c *TwoTierCache) MarkStale(ctx context.Context, key Key) {
	entry, _, err := contract.GetJSON[L2Entry](ctx, c.store, key.l2())
	if err != nil || entry == nil || entry.State != StateAvailable {
		return
	}
	entry.State = StateStale
	if err := contract.SetJSON(ctx, c.store, key.l2(), entry, c.config.LockTTL); err != nil {
		c.logError("mark stale failed", key, err)
	}
	if key.SessionID != "" {
		if err := c.store.Delete(ctx, key.l1()); err != nil {
			c.logError("L1 stale delete failed", key, err)
		}
	}
}

// InvalidateByDocument removes every L1 and L2 entry computed against documentHash
func (c *TwoTierCache) InvalidateByDocument(ctx context.Context, documentHash string) (int, error) {
	removed, err := contract.DeletePrefix(ctx, c.store, l2Prefix(documentHash))
	if err != nil {
		return removed, err
	}

	keys, err := c.store.Keys(ctx, "l1:")
	if err != nil {
		return removed, err
	}
	suffix := ":" + documentHash
	for _, k := range keys {
		if !strings.HasSuffix(k, suffix) {
			continue
		}
		if err := c.store.Delete(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}

	c.logger.Info("CACHE", "Document cache invalidated", map[string]interface{}{
		"document_hash": documentHash,
		"removed":       removed,
	})
	return removed, nil
}

// ClearL1 wipes a session's exact-match tier
func (c *TwoTierCache) ClearL1(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	_, err := contract.DeletePrefix(ctx, c.store, l1Prefix(sessionID))
	return err
}

func (c *TwoTierCache) Stats() Stats {
	return Stats{
		L1Hits: c.l1Hits.Load(),
		L2Hits: c.l2Hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *TwoTierCache) logError(message string, key Key, err error) {
	c.logger.Warn("CACHE", message, map[string]interface{}{
		"session_id":       key.SessionID,
		"document_hash":    key.DocumentHash,
		"instruction_hash": key.InstructionHash,
		"error":            err.Error(),
	})
}

// Package cache is the TTL-bound result tier: a read-through/write-through
// map from search fingerprint to a finished SearchResult.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/fingerprint"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
)

// DefaultTTL is how long a cached result stays fresh.
const DefaultTTL = time.Hour

type entry struct {
	Timestamp int64             `json:"timestamp"`
	Result    core.SearchResult `json:"result"`
}

// Cache stores finished results keyed by fingerprint. Storage failures are
// logged and never returned.
type Cache struct {
	kv     store.KV
	ttl    time.Duration
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger. Without one the cache is silent.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New returns a cache over kv.
func New(kv store.KV, opts ...Option) *Cache {
	c := &Cache{kv: kv, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL reports the configured freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached result for req. Expired and unreadable entries are
// removed and reported as a miss.
func (c *Cache) Get(ctx context.Context, req core.SearchRequest) (*core.SearchResult, bool) {
	key := fingerprint.Search(req)

	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		c.warn("cache read failed", key, err)
		return nil, false
	}
	if !ok {
		c.debug("cache miss", key)
		return nil, false
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.warn("cache entry unreadable, removing", key, err)
		c.remove(ctx, key)
		return nil, false
	}

	age := c.now().Sub(time.UnixMilli(e.Timestamp))
	if age > c.ttl {
		c.debug("cache entry expired", key)
		c.remove(ctx, key)
		return nil, false
	}

	c.debug("cache hit", key)
	result := e.Result.Settled()
	return &result, true
}

// Put stores a copy of result under req's fingerprint, overwriting any
// previous entry.
func (c *Cache) Put(ctx context.Context, req core.SearchRequest, result core.SearchResult) {
	key := fingerprint.Search(req)

	raw, err := json.Marshal(entry{Timestamp: c.now().UnixMilli(), Result: result.Settled()})
	if err != nil {
		c.warn("cache entry encode failed", key, err)
		return
	}
	if err := c.kv.Set(ctx, key, string(raw)); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			c.warn("storage is full, consider clearing the cache", key, err)
			return
		}
		c.warn("cache write failed", key, err)
		return
	}
	c.debug("cache write", key)
}

// Clear removes every cache entry and reports how many were removed. Keys
// outside the cache namespace are untouched.
func (c *Cache) Clear(ctx context.Context) int {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		c.warn("cache clear failed", "", err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		if !fingerprint.IsSearch(key) {
			continue
		}
		if err := c.kv.Remove(ctx, key); err != nil {
			c.warn("cache remove failed", key, err)
			continue
		}
		removed++
	}
	if c.logger != nil {
		c.logger.Info("cache cleared", zap.Int("removed", removed))
	}
	return removed
}

func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.kv.Remove(ctx, key); err != nil {
		c.warn("cache remove failed", key, err)
	}
}

func (c *Cache) debug(msg, key string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("key", key))
	}
}

func (c *Cache) warn(msg, key string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, zap.String("key", key), zap.Error(err))
	}
}

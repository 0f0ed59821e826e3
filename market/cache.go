package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache stores serialized provider responses with a TTL. Entries are provider
// data, not invocation results; invocations themselves stay stateless.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// MemoryCache is the in-process Cache used by tests and cache-less deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the payload for key when present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Put stores payload under key for ttl.
func (c *MemoryCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: c.now().Add(ttl)}
	return nil
}

// Keys lists all stored keys, expired entries included.
func (c *MemoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

const defaultCacheTTL = 5 * time.Minute

// CachingProvider wraps a Provider with a response cache.
type CachingProvider struct {
	inner Provider
	cache Cache
	ttl   time.Duration
}

// NewCachingProvider wraps inner with cache. A non-positive ttl uses the
// 5 minute default.
func NewCachingProvider(inner Provider, cache Cache, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachingProvider{inner: inner, cache: cache, ttl: ttl}
}

func cacheKey(kind, ticker string, extra ...string) string {
	parts := append([]string{kind, strings.ToUpper(ticker)}, extra...)
	return strings.Join(parts, "|")
}

// StockInfo serves the snapshot from cache when fresh.
func (p *CachingProvider) StockInfo(ctx context.Context, ticker string) (Info, error) {
	var info Info
	err := p.through(ctx, cacheKey("quote", ticker), &info, func() (any, error) {
		return p.inner.StockInfo(ctx, ticker)
	})
	return info, err
}

// History serves bars from cache when fresh.
func (p *CachingProvider) History(ctx context.Context, ticker, period, interval string) ([]Bar, error) {
	var bars []Bar
	err := p.through(ctx, cacheKey("history", ticker, period, interval), &bars, func() (any, error) {
		return p.inner.History(ctx, ticker, period, interval)
	})
	return bars, err
}

// Dividends serves the distribution history from cache when fresh.
func (p *CachingProvider) Dividends(ctx context.Context, ticker string) ([]Dividend, error) {
	var dividends []Dividend
	err := p.through(ctx, cacheKey("dividends", ticker), &dividends, func() (any, error) {
		return p.inner.Dividends(ctx, ticker)
	})
	return dividends, err
}

// through implements read-through caching: cache hit deserializes, miss calls
// fetch and stores the serialized response. Cache failures degrade to direct
// provider calls; they never fail an invocation.
func (p *CachingProvider) through(ctx context.Context, key string, out any, fetch func() (any, error)) error {
	if payload, ok, err := p.cache.Get(ctx, key); err == nil && ok {
		if err := json.Unmarshal(payload, out); err == nil {
			return nil
		}
	}

	fetched, err := fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(fetched)
	if err != nil {
		return fmt.Errorf("market: serialize cache entry %q: %w", key, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("market: rebind cache entry %q: %w", key, err)
	}
	_ = p.cache.Put(ctx, key, payload, p.ttl)
	return nil
}

// Refresh re-fetches every cached entry through the inner provider, used by
// the background refresh schedule to keep warm tickers warm.
func (p *CachingProvider) Refresh(ctx context.Context) error {
	keys, err := p.cache.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		parts := strings.Split(key, "|")
		if len(parts) < 2 {
			continue
		}
		kind, ticker := parts[0], parts[1]

		var fetched any
		var fetchErr error
		switch kind {
		case "quote":
			fetched, fetchErr = p.inner.StockInfo(ctx, ticker)
		case "history":
			period, interval := "", ""
			if len(parts) > 2 {
				period = parts[2]
			}
			if len(parts) > 3 {
				interval = parts[3]
			}
			fetched, fetchErr = p.inner.History(ctx, ticker, period, interval)
		case "dividends":
			fetched, fetchErr = p.inner.Dividends(ctx, ticker)
		default:
			continue
		}
		if fetchErr != nil {
			// A dead upstream must not wipe warm entries.
			continue
		}
		payload, err := json.Marshal(fetched)
		if err != nil {
			continue
		}
		if err := p.cache.Put(ctx, key, payload, p.ttl); err != nil {
			return err
		}
	}
	return nil
}

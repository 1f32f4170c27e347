package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/orderlens/orderlens/internal/observability"
	"github.com/orderlens/orderlens/internal/warehouse"
)

// Key builds the canonical cache key for a query and its bound parameters.
// Parameters are sorted by name so the key is independent of map iteration
// and caller ordering.
func Key(query string, params map[string]any) string {
	if len(params) == 0 {
		return query
	}
	pairs := make([]string, 0, len(params))
	for name, value := range params {
		pairs = append(pairs, fmt.Sprintf("%s=%v", name, value))
	}
	sort.Strings(pairs)
	return query + "?" + strings.Join(pairs, "&")
}

type entry struct {
	result    *warehouse.Result
	expiresAt time.Time
}

// ResultCache keeps query results in memory for a bounded TTL. Concurrent
// callers asking for the same key share a single in-flight computation.
type ResultCache struct {
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]entry

	group singleflight.Group
}

// New returns a cache whose entries expire after defaultTTL unless the
// caller overrides the TTL per call.
func New(defaultTTL time.Duration) *ResultCache {
	return &ResultCache{
		defaultTTL: defaultTTL,
		now:        time.Now,
		entries:    make(map[string]entry),
	}
}

// GetOrCompute returns the cached result for key when present and fresh.
// Otherwise it runs compute exactly once for all concurrent callers of the
// same key and caches the successful result. Failed computations are never
// cached. A ttl of zero falls back to the cache default.
//
// The flight runs detached from the first caller's cancellation: followers
// joined the same computation, so one caller leaving must not fail it for
// the rest. Compute is still bounded by the warehouse query timeout.
func (c *ResultCache) GetOrCompute(ctx context.Context, query, key string, ttl time.Duration, compute func(context.Context) (*warehouse.Result, error)) (*warehouse.Result, error) {
	if cached, ok := c.Get(key); ok {
		observability.IncrementCacheHit(query)
		return cached, nil
	}
	observability.IncrementCacheMiss(query)

	flightCtx := context.WithoutCancel(ctx)
	value, err, shared := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry between lookup and Do.
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		result, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.Put(key, result, ttl)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		observability.IncrementSharedFlight()
	}
	return value.(*warehouse.Result), nil
}

// Invalidate drops a single entry.
func (c *ResultCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of live (unexpired) entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			continue
		}
		n++
	}
	return n
}

// Get returns the entry for key when present and fresh, evicting it lazily
// when its TTL has passed.
func (c *ResultCache) Get(key string) (*warehouse.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

// Put stores a result under key. A ttl of zero falls back to the cache
// default; a cache with no default stores nothing.
func (c *ResultCache) Put(key string, result *warehouse.Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{result: result, expiresAt: c.now().Add(ttl)}
}

package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/log"
)

// CachedSource wraps a Source and keeps each (lat, lon, horizon) result for a TTL.
// Concurrent misses on the same key share a single upstream fetch.
type CachedSource struct {
	source    Source
	ttl       time.Duration
	now       func() time.Time
	group     singleflight.Group
	mutex     sync.RWMutex
	cache     map[string]cacheEntry
	hitCount  int
	missCount int
}

type cacheEntry struct {
	series    engine.ForecastSeries
	fetchedAt time.Time
}

// NewCachedSource creates a cached wrapper around a forecast source
func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

func cacheKey(lat, lon float64, horizonHours int) string {
	return fmt.Sprintf("%.4f:%.4f:%d", lat, lon, horizonHours)
}

// Fetch returns the cached series when it is younger than the TTL, otherwise
// fetches it. Errors are never cached. A caller that gives up returns its
// context error while the shared fetch still completes for the others.
func (c *CachedSource) Fetch(ctx context.Context, lat, lon float64, horizonHours int) (engine.ForecastSeries, error) {
	key := cacheKey(lat, lon, horizonHours)

	if series, ok := c.lookup(key); ok {
		return series, nil
	}

	c.mutex.Lock()
	c.missCount++
	c.mutex.Unlock()

	// The fill outlives any one caller; waiters on the key all get its result
	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another caller may have filled the key while we waited
		if series, ok := c.peek(key); ok {
			return series, nil
		}

		series, err := c.source.Fetch(fillCtx, lat, lon, horizonHours)
		if err != nil {
			return nil, err
		}

		c.mutex.Lock()
		c.cache[key] = cacheEntry{series: series, fetchedAt: c.now()}
		c.mutex.Unlock()

		return series, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	log.Debugw("forecast cache miss", "key", key, "shared", res.Shared)
	return res.Val.(engine.ForecastSeries), nil
}

func (c *CachedSource) lookup(key string) (engine.ForecastSeries, bool) {
	series, ok := c.peek(key)
	if !ok {
		return nil, false
	}

	c.mutex.Lock()
	c.hitCount++
	c.mutex.Unlock()

	log.Debugw("forecast cache hit", "key", key)
	return series, true
}

func (c *CachedSource) peek(key string) (engine.ForecastSeries, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, found := c.cache[key]
	if !found || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.series, true
}

// Prune drops expired entries and returns how many were removed
func (c *CachedSource) Prune() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := 0
	now := c.now()
	for key, entry := range c.cache {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.cache, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries, expired or not
func (c *CachedSource) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedSource) CacheStats() (hits, misses int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.hitCount, c.missCount
}

// Ensure CachedSource implements Source
var _ Source = (*CachedSource)(nil)
var _ Source = (*OpenMeteoClient)(nil)

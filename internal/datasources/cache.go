package datasources

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sawpanic/disruptrun/internal/series"
)

// CachedSource memoizes lookups of an underlying source. Batch runs request the
// same market and cost series for many entities; concurrent requests for one key
// share a single underlying call. Not-found results are cached too; other errors
// are returned without being stored so a later call retries.
type CachedSource struct {
	source  HistoricalDataSource
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cacheEntry
	hits    int64
	misses  int64
}

type cacheEntry struct {
	ts  series.TimeSeries
	err error
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCachedSource wraps source with an in-memory cache
func NewCachedSource(source HistoricalDataSource) *CachedSource {
	return &CachedSource{
		source:  source,
		entries: make(map[string]cacheEntry),
	}
}

// CostSeries implements HistoricalDataSource
func (c *CachedSource) CostSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	return c.get(ctx, KindCost, productID, region, c.source.CostSeries)
}

// DemandSeries implements HistoricalDataSource
func (c *CachedSource) DemandSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	return c.get(ctx, KindDemand, productID, region, c.source.DemandSeries)
}

type fetchFunc func(ctx context.Context, productID, region string) (series.TimeSeries, error)

func (c *CachedSource) get(ctx context.Context, kind Kind, productID, region string, fetch fetchFunc) (series.TimeSeries, error) {
	key := cacheKey(kind, productID, region)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return entry.ts, entry.err
	}
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return entry.ts, entry.err
		}

		ts, err := fetch(ctx, productID, region)
		if err != nil && !errors.Is(err, ErrSeriesNotFound) {
			return ts, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{ts: ts, err: err}
		c.mu.Unlock()
		return ts, err
	})
	return v.(series.TimeSeries), err
}

// Clear removes all cached entries
func (c *CachedSource) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Stats returns cache statistics
func (c *CachedSource) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func cacheKey(kind Kind, productID, region string) string {
	return string(kind) + ":" + productID + ":" + region
}

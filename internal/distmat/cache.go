// Package distmat caches pairwise distance matrices keyed by the exact
// coordinate tuple of a location set.
package distmat

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"qfleet/internal/metrics"
)

// DefaultCapacity is the hard cache entry limit.
const DefaultCapacity = 100

// Matrix is a symmetric pairwise distance matrix with a zero diagonal.
type Matrix [][]float64

// Stats is a consistent view of the cache counters, taken under the same
// mutex that guards mutation so size and hit/miss counts never tear.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// HitRatePercent is Hits/(Hits+Misses) in percent, 0 when empty.
func (s Stats) HitRatePercent() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache is a bounded, mutex-guarded matrix cache. Eviction is FIFO on
// insertion order, not access order. The single mutex covers the whole
// check/compute/insert/evict/count sequence, so concurrent requests for
// the same key never compute the matrix twice.
type Cache struct {
	mu       sync.Mutex
	capacity int
	metric   Metric
	entries  map[string]Matrix
	order    []string // insertion order, oldest first

	hits   int64
	misses int64
}

// NewCache builds a cache with the given capacity (<=0 selects
// DefaultCapacity) and metric (nil selects Euclidean).
func NewCache(capacity int, metric Metric) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if metric == nil {
		metric = Euclidean
	}
	return &Cache{
		capacity: capacity,
		metric:   metric,
		entries:  map[string]Matrix{},
	}
}

// GetOrCompute returns the matrix for the location tuple, computing and
// inserting it on a miss. Always succeeds.
func (c *Cache) GetOrCompute(locations [][2]float64) Matrix {
	key := cacheKey(locations)

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.entries[key]; ok {
		c.hits++
		metrics.CacheHits.Inc()
		return m
	}
	m := Compute(locations, c.metric)
	c.misses++
	metrics.CacheMisses.Inc()
	c.entries[key] = m
	c.order = append(c.order, key)
	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	metrics.CacheSize.Set(float64(len(c.entries)))
	return m
}

// Stats returns a consistent snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey encodes the exact float bits of every coordinate; two location
// tuples differing by float noise are distinct keys.
func cacheKey(locations [][2]float64) string {
	var b strings.Builder
	b.Grow(len(locations) * 34)
	for _, loc := range locations {
		b.WriteString(strconv.FormatUint(math.Float64bits(loc[0]), 16))
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(math.Float64bits(loc[1]), 16))
		b.WriteByte(';')
	}
	return b.String()
}

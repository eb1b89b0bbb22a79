package distmat

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(n int, offset float64) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{float64(i) + offset, float64(i*i) + offset}
	}
	return out
}

func TestComputeSymmetricZeroDiagonal(t *testing.T) {
	m := Compute(square(5, 0), Euclidean)
	for i := range m {
		assert.Zero(t, m[i][i])
		for j := range m[i] {
			assert.Equal(t, m[i][j], m[j][i])
			assert.GreaterOrEqual(t, m[i][j], 0.0)
		}
	}
}

func TestEuclideanAndHaversine(t *testing.T) {
	assert.InDelta(t, 5.0, Euclidean([2]float64{0, 0}, [2]float64{3, 4}), 1e-12)
	// One degree of latitude is about 111 km.
	d := HaversineMeters([2]float64{0, 0}, [2]float64{1, 0})
	assert.InDelta(t, 111_000, d, 500)
}

func TestGetOrComputeHitCounting(t *testing.T) {
	c := NewCache(10, nil)
	locs := square(4, 0)

	first := c.GetOrCompute(locs)
	second := c.GetOrCompute(locs)
	assert.Equal(t, first, second)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.InDelta(t, 50.0, stats.HitRatePercent(), 1e-9)
}

func TestGetOrComputeNeverRecomputes(t *testing.T) {
	calls := 0
	spy := func(a, b [2]float64) float64 {
		calls++
		return Euclidean(a, b)
	}
	c := NewCache(10, spy)
	locs := square(4, 0)

	c.GetOrCompute(locs)
	after := calls
	require.Greater(t, after, 0)

	c.GetOrCompute(locs)
	c.GetOrCompute(locs)
	assert.Equal(t, after, calls, "cached key must not recompute")
}

func TestFloatNoiseIsADistinctKey(t *testing.T) {
	c := NewCache(10, nil)
	locs := square(3, 0)
	c.GetOrCompute(locs)

	noisy := square(3, 0)
	noisy[0][0] += 1e-15
	c.GetOrCompute(noisy)

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestFIFOEvictionAtCapacity(t *testing.T) {
	c := NewCache(0, nil) // DefaultCapacity
	for i := 0; i <= DefaultCapacity; i++ {
		c.GetOrCompute(square(3, float64(i)))
	}
	assert.Equal(t, DefaultCapacity, c.Len(), "capacity is a hard bound")

	// The earliest-inserted key was evicted, so re-fetching it misses
	// again (and in turn evicts the next-oldest key).
	c.GetOrCompute(square(3, 0))
	stats := c.Stats()
	assert.Equal(t, int64(DefaultCapacity+2), stats.Misses)

	c.GetOrCompute(square(3, 2))
	assert.Equal(t, int64(1), c.Stats().Hits, "newer entries survive eviction")
}

func TestConcurrentSameKeySingleCompute(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	spy := func(a, b [2]float64) float64 {
		mu.Lock()
		calls++
		mu.Unlock()
		return Euclidean(a, b)
	}
	c := NewCache(10, spy)
	locs := square(4, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(locs)
		}()
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(15), stats.Hits)
	// 4 locations: 6 unordered pairs computed exactly once.
	assert.Equal(t, 6, calls)
}

func TestCacheKeyOrderSensitive(t *testing.T) {
	a := [][2]float64{{1, 2}, {3, 4}}
	b := [][2]float64{{3, 4}, {1, 2}}
	assert.NotEqual(t, cacheKey(a), cacheKey(b))

	nan := [][2]float64{{math.NaN(), 0}}
	assert.Equal(t, cacheKey(nan), cacheKey(nan), "keys are bit-exact, NaN included")
}

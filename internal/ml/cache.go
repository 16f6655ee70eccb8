// Package ml provides caching for win-probability predictions.
package ml

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// CacheKey represents a unique key for caching predictions
type CacheKey struct {
	Grid         int
	Round        int
	Driver       string
	Team         string
	Race         string
	Classifier   string
	ModelVersion string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%d|%q|%q|%q", k.Classifier, k.ModelVersion, k.Grid, k.Round, k.Driver, k.Team, k.Race)
}

// PredictionCache provides in-memory caching of classifier probabilities
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached probability
func (pc *PredictionCache) Get(key CacheKey) (float64, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if result, found := pc.cache.Get(key.String()); found {
		if p, ok := result.(float64); ok {
			pc.hitCount++
			pc.updateMetrics()
			return p, true
		}
	}

	pc.missCount++
	pc.updateMetrics()
	return 0, false
}

// Set stores a probability in cache. When the cache is full, expired items are
// removed first; if it is still full the entry is not stored.
func (pc *PredictionCache) Set(key CacheKey, probability float64) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.cache.ItemCount() >= pc.maxSize {
		pc.cache.DeleteExpired()
		if pc.cache.ItemCount() >= pc.maxSize {
			return false
		}
	}

	pc.cache.Set(key.String(), probability, pc.ttl)
	return true
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache.Flush()
	pc.hitCount = 0
	pc.missCount = 0
	pc.updateMetrics()
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stats()
}

func (pc *PredictionCache) stats() (hits, misses uint64, ratio float64) {
	hits = pc.hitCount
	misses = pc.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// updateMetrics updates Prometheus metrics; callers hold pc.mu
func (pc *PredictionCache) updateMetrics() {
	_, _, ratio := pc.stats()
	CacheHitRatio.Set(ratio)
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}

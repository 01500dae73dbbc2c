package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/Veraticus/digitpad/internal/service"
)

// cacheEntry is one cached score vector.
type cacheEntry struct {
	expiry time.Time
	scores []float32
}

// scoreCache is a TTL cache keyed by input digest.
type scoreCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

func newScoreCache(ttl time.Duration) *scoreCache {
	if ttl == 0 {
		ttl = time.Minute
	}

	cache := &scoreCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

func (c *scoreCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return nil, false
	}
	return append([]float32(nil), entry.scores...), true
}

func (c *scoreCache) set(key string, scores []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		scores: append([]float32(nil), scores...),
		expiry: c.now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *scoreCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *scoreCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *scoreCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *scoreCache) close() {
	close(c.stopCh)
}

// inputKey digests a tensor and its shape.
func inputKey(input []float32, shape []int64) string {
	h := sha256.New()
	var buf [8]byte
	for _, d := range shape {
		binary.LittleEndian.PutUint64(buf[:], uint64(d))
		h.Write(buf[:])
	}
	for _, v := range input {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
		h.Write(buf[:4])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cached wraps a classifier and reuses scores for identical inputs, such as
// a stroke end arriving right after a debounce run on the same drawing.
type Cached struct {
	service.Classifier
	cache *scoreCache
	hits  int
	mu    sync.Mutex
}

// NewCached wraps c with a score cache.
func NewCached(c service.Classifier, ttl time.Duration) *Cached {
	return &Cached{Classifier: c, cache: newScoreCache(ttl)}
}

// Run returns cached scores for a known input, otherwise delegates.
func (c *Cached) Run(ctx context.Context, input []float32, shape []int64) ([]float32, error) {
	key := inputKey(input, shape)
	if scores, ok := c.cache.get(key); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return scores, nil
	}

	scores, err := c.Classifier.Run(ctx, input, shape)
	if err != nil {
		return nil, err
	}
	c.cache.set(key, scores)
	return scores, nil
}

// Hits returns the number of runs served from the cache.
func (c *Cached) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Close stops the cache and closes the wrapped classifier.
func (c *Cached) Close() error {
	c.cache.close()
	c.cache.clear()
	return c.Classifier.Close()
}

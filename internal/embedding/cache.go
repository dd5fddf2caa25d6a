package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheEntries bounds the number of cached vectors.
const DefaultCacheEntries = 10_000

// Cached memoizes another embedder's vectors in an in-process ristretto
// cache keyed by a hash of the text. Concurrent misses for the same text
// share one upstream call. Errors are never cached.
type Cached struct {
	inner  Embedder
	cache  *ristretto.Cache
	flight singleflight.Group
}

// NewCached wraps inner. maxEntries <= 0 uses DefaultCacheEntries.
func NewCached(inner Embedder, maxEntries int) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.(Vector); ok {
			return vec, nil
		}
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, vec, 1)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Vector), nil
}

func (c *Cached) Dims() int { return c.inner.Dims() }

// Wait blocks until pending cache writes are visible.
func (c *Cached) Wait() { c.cache.Wait() }

// Close releases the cache.
func (c *Cached) Close() { c.cache.Close() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

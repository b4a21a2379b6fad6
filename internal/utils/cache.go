package utils

import (
	"context"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the read-through cache used for rendered views. A miss is (nil, false).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	// Generation returns a token that changes every time key is deleted.
	Generation(ctx context.Context, key string) uint64
	// SetIfGeneration stores val only if key was not deleted since gen was read.
	SetIfGeneration(ctx context.Context, key string, gen uint64, val []byte, ttl time.Duration) bool
}

// ThreadCacheKey is the cache key of a forum thread detail view.
func ThreadCacheKey(postID string) string {
	return "forum:thread:" + postID
}

// ReadThrough returns the cached value of key, or loads and caches it. A value loaded
// while key was being deleted is returned but not cached, so writers never lose an
// invalidation to a slow reader.
func ReadThrough(ctx context.Context, c Cache, key string, ttl time.Duration, load func() ([]byte, error)) ([]byte, error) {
	if c == nil {
		return load()
	}
	if val, ok := c.Get(ctx, key); ok {
		return val, nil
	}
	gen := c.Generation(ctx, key)
	val, err := load()
	if err != nil {
		return nil, err
	}
	c.SetIfGeneration(ctx, key, gen, val, ttl)
	return val, nil
}

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// minGenerations bounds how few deletions the LRU cache remembers.
const minGenerations = 1024

// LRUCache is an in-process cache with per item expiry.
type LRUCache struct {
	lruCache *lru.Cache[string, cacheItem]
	now      func() time.Time

	// mu orders Delete against SetIfGeneration.
	mu       sync.Mutex
	gens     *lru.Cache[string, uint64]
	lastGen  uint64
	genFloor uint64 // highest generation evicted from gens
}

func NewLRUCache(size int) *LRUCache {
	l, err := lru.New[string, cacheItem](size)
	if err != nil {
		log.Fatalf("Failed to create LRU cache: %v", err)
	}
	c := &LRUCache{lruCache: l, now: time.Now}

	genSize := size * 4
	if genSize < minGenerations {
		genSize = minGenerations
	}
	// Evictions run inside Delete, under c.mu.
	c.gens, err = lru.NewWithEvict[string, uint64](genSize, func(_ string, gen uint64) {
		if gen > c.genFloor {
			c.genFloor = gen
		}
	})
	if err != nil {
		log.Fatalf("Failed to create LRU cache: %v", err)
	}
	return c
}

func (c *LRUCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem{
		data:      val,
		expiresAt: c.now().Add(ttl),
	})
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return nil, false
	}
	return val.data, true
}

func (c *LRUCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.lruCache.Remove(key)
		c.lastGen++
		c.gens.Add(key, c.lastGen)
	}
}

// Generation falls back to the highest evicted generation for keys it no longer
// tracks, so a forgotten deletion still reads as a change.
func (c *LRUCache) Generation(_ context.Context, key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(key)
}

func (c *LRUCache) generation(key string) uint64 {
	if gen, ok := c.gens.Peek(key); ok {
		return gen
	}
	return c.genFloor
}

func (c *LRUCache) SetIfGeneration(ctx context.Context, key string, gen uint64, val []byte, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(key) != gen {
		return false
	}
	c.Set(ctx, key, val, ttl)
	return true
}

func (c *LRUCache) Len() int {
	return c.lruCache.Len()
}

var _ Cache = (*LRUCache)(nil)

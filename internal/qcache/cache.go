// Package qcache memoizes compiled queries.
//
// Entries are bounded by both capacity (least recently inserted or read
// entries go first) and age. Concurrent requests for the same missing key
// are collapsed into one computation; losing that race would be harmless
// because compilation is deterministic, but it saves redundant drafting.
package qcache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// Defaults applied by New when Options leaves a field zero.
const (
	DefaultCapacity = 1024
	DefaultTTL      = time.Hour
)

// keyDomain separates cache keys from any other digest of the same text.
// The version suffix allows the key algorithm to change.
const keyDomain = "floatq/query-cache/v1"

// Key derives the cache key for a question and its retrieval context.
// Format: hex(SHA256(domain 0x00 text 0x00 context)). The NUL separators
// keep ("ab", "c") and ("a", "bc") apart.
func Key(text, context string) string {
	h := sha256.New()
	h.Write([]byte(keyDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(text))
	h.Write([]byte{0x00})
	h.Write([]byte(context))
	return hex.EncodeToString(h.Sum(nil))
}

// Options configures a Cache.
type Options struct {
	Capacity uint64
	TTL      time.Duration
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a bounded, thread-safe memo table.
type Cache[V any] struct {
	items *ttlcache.Cache[string, V]
	group singleflight.Group
}

// New returns an empty cache. Call Start to expire entries in the
// background; without it expired entries are still never returned, they
// just linger until evicted by capacity.
func New[V any](opts Options) *Cache[V] {
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Cache[V]{
		items: ttlcache.New(
			ttlcache.WithTTL[string, V](opts.TTL),
			ttlcache.WithCapacity[string, V](opts.Capacity),
			ttlcache.WithDisableTouchOnHit[string, V](),
		),
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	if item := c.items.Get(key); item != nil {
		return item.Value(), true
	}
	var zero V
	return zero, false
}

// Set stores v under key with the default TTL.
func (c *Cache[V]) Set(key string, v V) {
	c.items.Set(key, v, ttlcache.DefaultTTL)
}

// GetOrCompute returns the cached value for key, or runs compute, stores
// a successful result and returns it. Errors are never cached. cached
// reports whether the value came from the cache.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (v V, cached bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have filled the entry while we waited
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// Len returns the number of entries, including expired ones not yet
// cleaned up.
func (c *Cache[V]) Len() int {
	return c.items.Len()
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.items.DeleteAll()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	m := c.items.Metrics()
	return Stats{
		Entries:   c.items.Len(),
		Hits:      m.Hits,
		Misses:    m.Misses,
		Evictions: m.Evictions,
	}
}

// Start runs the expiration loop. It blocks until Stop is called.
func (c *Cache[V]) Start() {
	c.items.Start()
}

// Stop ends the expiration loop.
func (c *Cache[V]) Stop() {
	c.items.Stop()
}

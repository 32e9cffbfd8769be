package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is a bounded in-process cache. Entries expire after their TTL
// and the least recently used entry is evicted once MaxEntries is reached.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	policy  Policy
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithNow replaces the clock used for expiry.
func WithNow(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates an in-memory cache holding at most
// policy.MaxEntries values.
func NewMemoryCache(policy Policy, opts ...MemoryOption) *MemoryCache {
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, memoryEntry](policy.maxEntries())

	c := &MemoryCache{
		entries: entries,
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores a copy of value for ttl, clamped to the policy's MaxTTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	ttl = c.policy.EffectiveTTL(ttl)

	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries.Add(key, memoryEntry{value: stored, expiresAt: c.now().Add(ttl)})
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet
// removed.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

var _ Cache = (*MemoryCache)(nil)

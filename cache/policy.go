package cache

import "time"

// Policy configures how long last-known-good values are kept.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, nothing is stored.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// MaxEntries bounds the in-memory cache. Least recently used entries
	// are evicted first. Ignored by the Redis backend.
	// Default: 1024
	MaxEntries int
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour, MaxEntries: 1024
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     time.Hour,
		MaxEntries: 1024,
	}
}

// NoCachePolicy returns a policy that stores nothing.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether the policy stores anything.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns override, or DefaultTTL when override is not
// positive, clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

func (p Policy) maxEntries() int {
	if p.MaxEntries <= 0 {
		return 1024
	}
	return p.MaxEntries
}

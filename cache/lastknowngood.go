package cache

import (
	"context"
	"encoding/json"
	"time"
)

// LastKnownGood remembers the latest successful result of a call type per
// input so that a fallback can serve it when the dependency fails.
//
//	lkg := cache.NewLastKnownGood[[]License](c, "licenseByOrg")
//	licenses, err := resilience.Do(ctx, exec, "licenseByOrg",
//	    lkg.Wrap(orgID, fetchLicenses),
//	    lkg.Fallback(orgID),
//	)
//
// Values are stored as JSON. Storage failures never fail the call.
type LastKnownGood[T any] struct {
	cache    Cache
	callType string
	keyer    Keyer
	ttl      time.Duration
	onError  func(ctx context.Context, key string, err error)
}

// LastKnownGoodOption configures a LastKnownGood.
type LastKnownGoodOption func(*lkgConfig)

type lkgConfig struct {
	keyer   Keyer
	ttl     time.Duration
	onError func(ctx context.Context, key string, err error)
}

// WithKeyer replaces the DefaultKeyer.
func WithKeyer(k Keyer) LastKnownGoodOption {
	return func(c *lkgConfig) {
		if k != nil {
			c.keyer = k
		}
	}
}

// WithTTL sets how long a stored value may be served. The cache's policy
// still clamps it.
// Default: 5 minutes
func WithTTL(ttl time.Duration) LastKnownGoodOption {
	return func(c *lkgConfig) {
		c.ttl = ttl
	}
}

// WithStoreErrorHandler is called when a value cannot be encoded or
// stored.
func WithStoreErrorHandler(fn func(ctx context.Context, key string, err error)) LastKnownGoodOption {
	return func(c *lkgConfig) {
		c.onError = fn
	}
}

// NewLastKnownGood creates a LastKnownGood for callType backed by c. A nil
// c stores nothing and reports ErrNilCache to the store error handler.
func NewLastKnownGood[T any](c Cache, callType string, opts ...LastKnownGoodOption) *LastKnownGood[T] {
	cfg := lkgConfig{
		keyer: NewDefaultKeyer(),
		ttl:   DefaultPolicy().DefaultTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &LastKnownGood[T]{
		cache:    c,
		callType: callType,
		keyer:    cfg.keyer,
		ttl:      cfg.ttl,
		onError:  cfg.onError,
	}
}

// Wrap returns op with successful results stored under input's key.
func (l *LastKnownGood[T]) Wrap(input any, op func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		v, err := op(ctx)
		if err != nil {
			return v, err
		}
		l.Store(ctx, input, v)
		return v, nil
	}
}

// Store records v as the last good result for input.
func (l *LastKnownGood[T]) Store(ctx context.Context, input any, v T) {
	if l.cache == nil {
		l.fail(ctx, "", ErrNilCache)
		return
	}
	key, err := l.keyer.Key(l.callType, input)
	if err != nil {
		l.fail(ctx, key, err)
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		l.fail(ctx, key, err)
		return
	}
	if err := l.cache.Set(ctx, key, b, l.ttl); err != nil {
		l.fail(ctx, key, err)
	}
}

// Load returns the stored result for input.
func (l *LastKnownGood[T]) Load(ctx context.Context, input any) (T, bool) {
	var zero T
	if l.cache == nil {
		return zero, false
	}

	key, err := l.keyer.Key(l.callType, input)
	if err != nil {
		return zero, false
	}
	b, ok := l.cache.Get(ctx, key)
	if !ok {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, false
	}
	return v, true
}

// Fallback returns a fallback serving the stored result for input. With
// nothing stored, the fallback returns the command error unchanged.
func (l *LastKnownGood[T]) Fallback(input any) func(ctx context.Context, err error) (T, error) {
	return func(ctx context.Context, err error) (T, error) {
		if v, ok := l.Load(ctx, input); ok {
			return v, nil
		}
		var zero T
		return zero, err
	}
}

func (l *LastKnownGood[T]) fail(ctx context.Context, key string, err error) {
	if l.onError != nil {
		l.onError(ctx, key, err)
	}
}

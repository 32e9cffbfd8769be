package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrBackend    = errors.New("cache: backend error")
)

// Cache stores the last good result of a call so a fallback can serve it.
//
// Implementations must be safe for concurrent use. Get never errors: a
// backend failure reads as a miss, so a broken cache degrades a fallback
// instead of failing it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl. A ttl <= 0 stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidateKey reports whether key can be stored. Keys must be non-blank,
// single-line and at most MaxKeyLength bytes.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: blank", ErrInvalidKey)
	}
	if n := len(key); n > MaxKeyLength {
		return fmt.Errorf("%w: %d bytes", ErrKeyTooLong, n)
	}
	if strings.ContainsAny(key, "\n\r") {
		return fmt.Errorf("%w: contains a line break", ErrInvalidKey)
	}
	return nil
}

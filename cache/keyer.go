package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer generates deterministic cache keys from a call type and the input
// that identifies one call, such as an organization id.
//
// Equal inputs must yield equal keys whatever the map iteration order, and
// implementations must be safe for concurrent use.
type Keyer interface {
	Key(callType string, input any) (string, error)
}

// DefaultKeyPrefix is the namespace of fallback keys.
const DefaultKeyPrefix = "fallback"

// DefaultKeyer hashes inputs with SHA-256.
type DefaultKeyer struct {
	prefix string
}

// NewDefaultKeyer creates a keyer using prefix, or DefaultKeyPrefix when
// prefix is empty.
func NewDefaultKeyer(prefix ...string) *DefaultKeyer {
	k := &DefaultKeyer{prefix: DefaultKeyPrefix}
	if len(prefix) > 0 && prefix[0] != "" {
		k.prefix = prefix[0]
	}
	return k
}

// Key generates a deterministic cache key of the form
// <prefix>:<callType>:<hex SHA-256 of canonical JSON input>.
func (k *DefaultKeyer) Key(callType string, input any) (string, error) {
	if callType == "" {
		return "", fmt.Errorf("%w: empty call type", ErrInvalidKey)
	}

	canonical, err := canonicalize(input)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	key := fmt.Sprintf("%s:%s:%s", k.prefix, callType, hex.EncodeToString(sum[:]))
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// canonicalize encodes v for hashing. A top-level string is used as is, so
// plain ids hash without JSON quoting. Everything else is JSON, whose map
// keys encoding/json already emits in sorted order at every depth.
func canonicalize(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}

var _ Keyer = (*DefaultKeyer)(nil)

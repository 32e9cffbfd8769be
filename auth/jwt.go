package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/callguard/execctx"
)

// JWTConfig configures the JWT decoder.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim). Empty skips the check.
	Issuer string

	// Audience is the expected token audience (aud claim). Empty skips the
	// check.
	Audience string

	// UserClaim is the claim holding the user id.
	// Default: "sub"
	UserClaim string

	// OrgClaim is the claim holding the organization id. A token without it
	// yields an identity with an empty org id.
	// Default: "org_id"
	OrgClaim string

	// Leeway is the clock skew tolerated for exp, nbf and iat.
	// Default: 0
	Leeway time.Duration

	// ValidMethods lists the accepted signing algorithms.
	// Default: HS256, HS384, HS512
	ValidMethods []string

	// RequireExpiration rejects tokens without an exp claim.
	// Default: false
	RequireExpiration bool
}

func (c JWTConfig) withDefaults() JWTConfig {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.OrgClaim == "" {
		c.OrgClaim = "org_id"
	}
	if len(c.ValidMethods) == 0 {
		c.ValidMethods = []string{"HS256", "HS384", "HS512"}
	}
	return c
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID. keyID is empty when the
	// token header has no kid.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a single shared signing key.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key, or ErrKeyNotFound when it is empty.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	if len(p.key) == 0 {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// JWTDecoder extracts the user and organization ids from a signed JWT. It
// plugs into execctx.Middleware through execctx.WithTokenDecoder.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: every failure matches one of the package sentinels with
//   errors.Is; the jwt library error stays in the chain.
type JWTDecoder struct {
	config JWTConfig
	keys   KeyProvider
	parser *jwt.Parser
}

// NewJWTDecoder creates a decoder validating tokens with keys.
func NewJWTDecoder(config JWTConfig, keys KeyProvider, opts ...jwt.ParserOption) (*JWTDecoder, error) {
	if keys == nil {
		return nil, fmt.Errorf("%w: nil key provider", ErrKeyNotFound)
	}
	config = config.withDefaults()

	popts := []jwt.ParserOption{
		jwt.WithValidMethods(config.ValidMethods),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		popts = append(popts, jwt.WithAudience(config.Audience))
	}
	if config.RequireExpiration {
		popts = append(popts, jwt.WithExpirationRequired())
	}

	return &JWTDecoder{
		config: config,
		keys:   keys,
		parser: jwt.NewParser(append(popts, opts...)...),
	}, nil
}

// Decode validates token and returns the identity it carries. token is the
// raw JWT; a leading "Bearer " is tolerated.
func (d *JWTDecoder) Decode(ctx context.Context, token string) (execctx.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return execctx.Identity{}, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := d.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return d.keys.GetKey(ctx, kid)
	})
	if err != nil {
		return execctx.Identity{}, classify(err)
	}

	user, _ := claims[d.config.UserClaim].(string)
	if user == "" {
		return execctx.Identity{}, fmt.Errorf("%w: %s", ErrMissingClaim, d.config.UserClaim)
	}
	org, _ := claims[d.config.OrgClaim].(string)

	return execctx.Identity{UserID: user, OrgID: org}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
}

var (
	_ execctx.TokenDecoder = (*JWTDecoder)(nil)
	_ KeyProvider          = (*StaticKeyProvider)(nil)
)

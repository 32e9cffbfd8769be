package execctx

import (
	"context"
	"net/http"
	"strings"
)

// Header names used at the HTTP boundary.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderAuthorization = "Authorization"
	HeaderUserID        = "X-User-ID"
	HeaderOrgID         = "X-Org-ID"
)

const bearerPrefix = "Bearer "

// Identity is what a TokenDecoder extracts from an auth token.
type Identity struct {
	UserID string
	OrgID  string
}

// TokenDecoder turns a raw auth token into an Identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a decode error leaves the request unauthenticated; it is not fatal.
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (Identity, error)
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	decoder TokenDecoder
	onError func(r *http.Request, err error)
}

// WithTokenDecoder fills user and org ids from the auth token when the
// request does not carry them as headers.
func WithTokenDecoder(d TokenDecoder) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.decoder = d
	}
}

// WithDecodeErrorHandler is called when the token decoder fails.
func WithDecodeErrorHandler(fn func(r *http.Request, err error)) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.onError = fn
	}
}

// Middleware builds the execution context for every inbound request from its
// headers, generating a correlation id when the caller sent none. The
// correlation id is echoed on the response.
func Middleware(next http.Handler, opts ...MiddlewareOption) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ec := FromRequest(r)

		if cfg.decoder != nil && ec.AuthToken() != "" && ec.UserID() == "" {
			id, err := cfg.decoder.Decode(r.Context(), ec.AuthToken())
			if err != nil {
				if cfg.onError != nil {
					cfg.onError(r, err)
				}
			} else {
				ec = ec.WithIdentity(id.UserID, id.OrgID)
			}
		}

		w.Header().Set(HeaderCorrelationID, ec.CorrelationID())
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ec)))
	})
}

// FromRequest builds an ExecutionContext from the request headers.
func FromRequest(r *http.Request) ExecutionContext {
	token := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	token = strings.TrimSpace(strings.TrimPrefix(token, bearerPrefix))

	return New(
		r.Header.Get(HeaderCorrelationID),
		token,
		r.Header.Get(HeaderUserID),
		r.Header.Get(HeaderOrgID),
	)
}

// Inject writes ec onto outbound request headers. Headers already present on
// the request are left alone.
func Inject(h http.Header, ec ExecutionContext) {
	setIfMissing(h, HeaderCorrelationID, ec.CorrelationID())
	if ec.AuthToken() != "" {
		setIfMissing(h, HeaderAuthorization, bearerPrefix+ec.AuthToken())
	}
	setIfMissing(h, HeaderUserID, ec.UserID())
	setIfMissing(h, HeaderOrgID, ec.OrgID())
}

func setIfMissing(h http.Header, key, value string) {
	if value == "" || h.Get(key) != "" {
		return
	}
	h.Set(key, value)
}

// Transport is an http.RoundTripper that forwards the execution context found
// in the request's context to the downstream service.
type Transport struct {
	base http.RoundTripper
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ec, ok := FromContext(req.Context())
	if !ok {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	Inject(out.Header, ec)
	return t.base.RoundTrip(out)
}

var _ http.RoundTripper = (*Transport)(nil)

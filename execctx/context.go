package execctx

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ExecutionContext is the immutable request-scoped bag readable by any code
// running on behalf of the original caller.
type ExecutionContext struct {
	correlationID string
	authToken     string
	userID        string
	orgID         string
}

// New creates an ExecutionContext. An empty correlation id is replaced with a
// freshly generated one.
func New(correlationID, authToken, userID, orgID string) ExecutionContext {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		correlationID = NewCorrelationID()
	}
	return ExecutionContext{
		correlationID: correlationID,
		authToken:     authToken,
		userID:        userID,
		orgID:         orgID,
	}
}

// Empty returns a context holding only a new correlation id.
func Empty() ExecutionContext {
	return New("", "", "", "")
}

// NewCorrelationID generates a correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// CorrelationID returns the correlation id.
func (ec ExecutionContext) CorrelationID() string { return ec.correlationID }

// AuthToken returns the propagated auth token, without any "Bearer " prefix.
func (ec ExecutionContext) AuthToken() string { return ec.authToken }

// UserID returns the user id, if known.
func (ec ExecutionContext) UserID() string { return ec.userID }

// OrgID returns the organization id, if known.
func (ec ExecutionContext) OrgID() string { return ec.orgID }

// IsZero reports whether ec was never initialized.
func (ec ExecutionContext) IsZero() bool { return ec.correlationID == "" }

// WithIdentity returns a copy of ec with the given user and organization ids.
func (ec ExecutionContext) WithIdentity(userID, orgID string) ExecutionContext {
	ec.userID = userID
	ec.orgID = orgID
	return ec
}

// WithAuthToken returns a copy of ec carrying token.
func (ec ExecutionContext) WithAuthToken(token string) ExecutionContext {
	ec.authToken = token
	return ec
}

type contextKey int

const slotKey contextKey = iota

// slot holds the execution context for one unit of work. The value is
// created lazily on first read and never changes afterwards.
type slot struct {
	once sync.Once
	ec   ExecutionContext
}

func (s *slot) get() ExecutionContext {
	s.once.Do(func() {
		if s.ec.IsZero() {
			s.ec = Empty()
		}
	})
	return s.ec
}

// Begin marks ctx as the start of a unit of work. The first call to Current on
// the returned context creates an empty execution context and every later call
// returns the same one. If ctx already carries a unit of work it is returned
// unchanged.
func Begin(ctx context.Context) context.Context {
	if _, ok := ctx.Value(slotKey).(*slot); ok {
		return ctx
	}
	return context.WithValue(ctx, slotKey, &slot{})
}

// WithContext returns a copy of ctx whose execution context is ec.
func WithContext(ctx context.Context, ec ExecutionContext) context.Context {
	s := &slot{ec: ec}
	return context.WithValue(ctx, slotKey, s)
}

// Current returns the execution context for ctx. When none was set, a fresh
// empty context is created; it is cached only if ctx was prepared by Begin.
func Current(ctx context.Context) ExecutionContext {
	if ctx == nil {
		return Empty()
	}
	if s, ok := ctx.Value(slotKey).(*slot); ok {
		return s.get()
	}
	return Empty()
}

// FromContext returns the execution context installed in ctx, reporting false
// when ctx carries none. Unlike Current it never creates one.
func FromContext(ctx context.Context) (ExecutionContext, bool) {
	if ctx == nil {
		return ExecutionContext{}, false
	}
	s, ok := ctx.Value(slotKey).(*slot)
	if !ok {
		return ExecutionContext{}, false
	}
	ec := s.get()
	return ec, true
}

// CorrelationIDFromContext is shorthand for Current(ctx).CorrelationID().
func CorrelationIDFromContext(ctx context.Context) string {
	return Current(ctx).CorrelationID()
}

// Propagate copies the caller's execution context into target, which is
// usually the context a worker goroutine runs with. The copy is resolved
// eagerly so the worker never observes later changes made by the caller.
func Propagate(caller, target context.Context) context.Context {
	return WithContext(target, Current(caller))
}

// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services and handlers read them. Keeping this
// package free of net/http lets the ledger services stay importable from
// tests and CLI tools without HTTP code.
//
// The ledger never reads the wall clock on a decision path: every operation
// compares against Now(ctx), which middleware pins once per request and
// tests inject with WithTime.
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type (
	principalKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Principal retrieves the authenticated caller principal from the context.
// Returns uuid.Nil if the request was not authenticated.
func Principal(ctx context.Context) uuid.UUID {
	if p, ok := ctx.Value(ContextKeyPrincipal).(uuid.UUID); ok {
		return p
	}
	return uuid.Nil
}

// WithPrincipal injects an authenticated caller principal into the context.
func WithPrincipal(ctx context.Context, principal uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the requesttime
// middleware and by tests that drive the scan-window state machine through
// fixed instants.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Package requestcontext provides HTTP-independent accessors for request-scoped
// values. Middleware sets them; services read them without importing net/http.
//
//	accountID := requestcontext.AccountID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	id "notary/pkg/domain"
)

type (
	accountIDKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
)

// AccountID returns the authenticated account, or the nil ID.
func AccountID(ctx context.Context) id.AccountID {
	if v, ok := ctx.Value(accountIDKey{}).(id.AccountID); ok {
		return v
	}
	return id.AccountID{}
}

func WithAccountID(ctx context.Context, accountID id.AccountID) context.Context {
	return context.WithValue(ctx, accountIDKey{}, accountID)
}

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// Now returns the request-scoped time, falling back to time.Now for
// workers and tests that never went through the middleware.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins "now" for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

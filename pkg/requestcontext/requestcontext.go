// Package requestcontext carries request-scoped values (request id, client
// metadata, request time) through context.Context so that gates and services
// read them without depending on net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientKey      struct{}
)

// ClientMetadata holds the client attributes captured once per request.
type ClientMetadata struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// WithRequestID stores the correlation id for the request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" outside of a request.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithTime injects a specific "now" into a context.
// Service tests use it to move the clock without sleeping.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() for
// workers, CLI code and tests that did not set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithClientMetadata stores the client attributes for the request.
func WithClientMetadata(ctx context.Context, md ClientMetadata) context.Context {
	return context.WithValue(ctx, clientKey{}, md)
}

// Client returns the stored client attributes (zero value when absent).
func Client(ctx context.Context) ClientMetadata {
	if md, ok := ctx.Value(clientKey{}).(ClientMetadata); ok {
		return md
	}
	return ClientMetadata{}
}

// ClientIP returns the resolved client IP, or "" when metadata is absent.
func ClientIP(ctx context.Context) string {
	return Client(ctx).IP
}

// UserAgent returns the client's User-Agent header value.
func UserAgent(ctx context.Context) string {
	return Client(ctx).UserAgent
}

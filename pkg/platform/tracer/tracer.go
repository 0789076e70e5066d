// Package tracer is a small tracing facade over OpenTelemetry used by the gates.
//
// Gate decisions are traced without the secrets they inspect: keys are hashed with
// HashKey before they become span attributes.
//
// Implementations:
//   - NoopTracer: tests and tracing-disabled deployments
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
// Example:
//
//	ctx, span := t.Start(ctx, tracer.SpanRateLimitAllow, tracer.String(tracer.AttrKey, tracer.HashKey(key)))
//	defer span.End(nil)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashKey returns a short SHA-256 prefix of a gating key (which may embed an email or IP).
func HashKey(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanRateLimitAllow = "ratelimit.allow"
	SpanLockoutCheck   = "lockout.check"
	SpanCSRFValidate   = "csrf.validate"
	SpanOneTimeVerify  = "onetime.verify"
	SpanOneTimeCreate  = "onetime.create"
	SpanCleanupSweep   = "cleanup.sweep"
)

// Attribute keys.
const (
	AttrKey     = "gate.key_hash"
	AttrPolicy  = "gate.policy"
	AttrAllowed = "gate.allowed"
	AttrCount   = "gate.count"
	AttrReason  = "gate.reason"
	AttrPurpose = "onetime.purpose"
	AttrMethod  = "onetime.method"
	AttrRemoved = "cleanup.removed"
)

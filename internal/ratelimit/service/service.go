// Package service implements the fixed-window rate limiter.
//
// Usage:
//
//	limiter, _ := service.New(window.NewInMemoryWindowStore())
//	decision, err := limiter.Allow(ctx, "auth:1.2.3.4:a@b.com", 15*time.Minute, 5)
//	if err != nil || !decision.Allowed {
//	    // 429 with Retry-After: decision.RetryAfter (503 on err)
//	}
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatekeeper/internal/ratelimit/config"
	"gatekeeper/internal/ratelimit/metrics"
	"gatekeeper/internal/ratelimit/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/platform/tracer"
	"gatekeeper/pkg/requestcontext"
)

// PolicyCustom labels checks made through Allow rather than a named policy.
const PolicyCustom = "custom"

// WindowStore counts requests per key. Increment must be atomic per key.
type WindowStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (models.Window, error)
}

// Limiter decides whether a request fits in its key's current window.
// Safe for concurrent use.
type Limiter struct {
	store   WindowStore
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// Option configures a Limiter instance.
type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithAuditLogger records denials as security events.
func WithAuditLogger(a *audit.Logger) Option {
	return func(l *Limiter) {
		l.audit = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(l *Limiter) {
		if t != nil {
			l.tracer = t
		}
	}
}

func New(store WindowStore, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	l := &Limiter{
		store:  store,
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow counts one request for key and decides against maxRequests per window.
// Exactly maxRequests requests are allowed per window; the next one is denied with the
// whole seconds left until the window started by the first request ends.
func (l *Limiter) Allow(ctx context.Context, key string, window time.Duration, maxRequests int) (*models.Decision, error) {
	return l.check(ctx, PolicyCustom, key, window, maxRequests)
}

// AllowPolicy is Allow with the window, threshold and labels of a named policy.
func (l *Limiter) AllowPolicy(ctx context.Context, policy config.Policy, key string) (*models.Decision, error) {
	return l.check(ctx, policy.Name, key, policy.Window, policy.MaxRequests)
}

func (l *Limiter) check(ctx context.Context, policy, key string, window time.Duration, maxRequests int) (decision *models.Decision, err error) {
	ctx, span := l.tracer.Start(ctx, tracer.SpanRateLimitAllow,
		tracer.String(tracer.AttrPolicy, policy),
		tracer.String(tracer.AttrKey, tracer.HashKey(key)),
	)
	defer func() { span.End(err) }()

	if window <= 0 || maxRequests <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rate limit window and threshold must be positive")
	}

	w, err := l.store.Increment(ctx, key, window)
	if err != nil {
		if l.metrics != nil {
			l.metrics.IncrementStoreErrors()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	now := requestcontext.Now(ctx)
	resetAt := w.Start.Add(window)
	decision = &models.Decision{
		Allowed:   w.Count <= maxRequests,
		Limit:     maxRequests,
		Count:     w.Count,
		Remaining: max(0, maxRequests-w.Count),
		ResetAt:   resetAt,
	}
	if !decision.Allowed {
		// A denial always asks the client to wait at least a second.
		decision.RetryAfter = max(1, httputil.CeilSeconds(resetAt.Sub(now)))
	}

	span.SetAttributes(
		tracer.Bool(tracer.AttrAllowed, decision.Allowed),
		tracer.Int64(tracer.AttrCount, int64(w.Count)),
	)
	if l.metrics != nil {
		l.metrics.RecordDecision(policy, decision.Allowed)
	}
	if !decision.Allowed {
		l.audit.Log(ctx, audit.EventRateLimited,
			"policy", policy,
			"reason", policy,
			"subject", tracer.HashKey(key),
			"client_ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
			"count", w.Count,
			"limit", maxRequests,
			"retry_after", decision.RetryAfter,
		)
	}
	return decision, nil
}

// Package service implements the account lockout guard.
//
// The guard never authenticates anyone. The login route consults IsLocked before checking
// credentials, calls RecordFailedAttempt on a failed check and ResetAttempts on success.
package service

import (
	"context"
	"errors"
	"log/slog"

	"gatekeeper/internal/lockout/metrics"
	"gatekeeper/internal/lockout/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/platform/tracer"
	"gatekeeper/pkg/requestcontext"
)

// Store persists lockout records. RecordFailure and GetActive must be atomic per key.
type Store interface {
	RecordFailure(ctx context.Context, key string, cfg models.Config) (models.Record, error)
	GetActive(ctx context.Context, key string) (models.Record, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Guard counts failed attempts per identity+origin and locks the pair at the threshold.
type Guard struct {
	store   Store
	config  models.Config
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithAuditLogger(a *audit.Logger) Option {
	return func(g *Guard) {
		g.audit = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Guard) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithConfig overrides the thresholds. Non-positive fields keep their defaults.
func WithConfig(cfg models.Config) Option {
	return func(g *Guard) {
		if cfg.MaxAttempts > 0 {
			g.config.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.LockDuration > 0 {
			g.config.LockDuration = cfg.LockDuration
		}
	}
}

func New(store Store, opts ...Option) (*Guard, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	g := &Guard{
		store:  store,
		config: models.DefaultConfig(),
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the effective thresholds.
func (g *Guard) Config() models.Config {
	return g.config
}

// RecordFailedAttempt counts a failed credential check for identity from origin.
func (g *Guard) RecordFailedAttempt(ctx context.Context, identity, origin string) (*models.Record, error) {
	key := models.NewKey(identity, origin)
	record, err := g.store.RecordFailure(ctx, key, g.config)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record failed attempt")
	}

	if g.metrics != nil {
		g.metrics.IncrementFailedAttempts()
	}
	g.audit.Log(ctx, audit.EventLoginFailed,
		"subject", identity,
		"client_ip", privacy.AnonymizeIP(origin),
		"attempts", record.Attempts,
	)

	if record.Attempts == g.config.MaxAttempts {
		if g.metrics != nil {
			g.metrics.IncrementLockouts()
		}
		g.audit.Log(ctx, audit.EventAccountLocked,
			"subject", identity,
			"client_ip", privacy.AnonymizeIP(origin),
			"reason", "too_many_failed_attempts",
			"locked_until", record.LockedUntil,
		)
	}
	return &record, nil
}

// ResetAttempts clears the record after a successful authentication.
func (g *Guard) ResetAttempts(ctx context.Context, identity, origin string) error {
	existed, err := g.store.Delete(ctx, models.NewKey(identity, origin))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset attempts")
	}
	if !existed {
		return nil
	}
	if g.metrics != nil {
		g.metrics.IncrementResets()
	}
	g.audit.Log(ctx, audit.EventLockoutReset,
		"subject", identity,
		"client_ip", privacy.AnonymizeIP(origin),
	)
	return nil
}

// IsLocked reports whether identity may attempt a credential check from origin. An expired
// lock deletes the record, so the pair starts over with a full allowance.
func (g *Guard) IsLocked(ctx context.Context, identity, origin string) (status models.Status, err error) {
	key := models.NewKey(identity, origin)
	ctx, span := g.tracer.Start(ctx, tracer.SpanLockoutCheck,
		tracer.String(tracer.AttrKey, tracer.HashKey(key)),
	)
	defer func() { span.End(err) }()

	record, ok, err := g.store.GetActive(ctx, key)
	if err != nil {
		return models.Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lockout")
	}
	now := requestcontext.Now(ctx)
	if !ok || !record.IsLockedAt(now) {
		span.SetAttributes(tracer.Bool(tracer.AttrAllowed, true))
		return models.Status{}, nil
	}

	status = models.Status{
		Locked:           true,
		RemainingSeconds: httputil.CeilSeconds(record.LockedUntil.Sub(now)),
	}
	span.SetAttributes(
		tracer.Bool(tracer.AttrAllowed, false),
		tracer.Int64(tracer.AttrCount, int64(record.Attempts)),
	)
	if g.metrics != nil {
		g.metrics.IncrementLockedChecks()
	}
	return status, nil
}

// RemainingAttempts returns how many failures are left before identity is locked out from
// origin.
func (g *Guard) RemainingAttempts(ctx context.Context, identity, origin string) (int, error) {
	record, ok, err := g.store.GetActive(ctx, models.NewKey(identity, origin))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attempts")
	}
	if !ok {
		return g.config.MaxAttempts, nil
	}
	return record.Remaining(g.config), nil
}

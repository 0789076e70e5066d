// Package service issues and validates CSRF tokens bound to a session identifier.
package service

import (
	"context"
	"log/slog"
	"time"

	"gatekeeper/internal/csrf/metrics"
	"gatekeeper/internal/csrf/models"
	"gatekeeper/internal/tokenstore"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/platform/tracer"
	"gatekeeper/pkg/requestcontext"
	"gatekeeper/pkg/secrets"
)

// Service owns the sessionID -> token map. Tokens expire after the configured TTL and are
// never returned once expired.
type Service struct {
	tokens  *tokenstore.Store[string, string]
	ttl     time.Duration
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(*Service)

// WithTTL sets the token lifetime. Non-positive values keep the one hour default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditLogger(a *audit.Logger) Option {
	return func(s *Service) {
		s.audit = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		tokens: tokenstore.New[string, string](),
		ttl:    models.DefaultTokenTTL,
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a new session identifier and token and stores the pair.
func (s *Service) Issue(ctx context.Context) (*models.IssuedToken, error) {
	sessionID, err := secrets.HexToken(secrets.SessionIDBytes)
	if err != nil {
		return nil, err
	}
	token, err := secrets.HexToken(secrets.TokenBytes)
	if err != nil {
		return nil, err
	}
	s.tokens.Put(ctx, sessionID, token, s.ttl)

	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	s.audit.Log(ctx, audit.EventCSRFIssued,
		"subject", privacy.HashForLog(sessionID),
		"client_ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	)
	return &models.IssuedToken{Token: token, SessionID: sessionID}, nil
}

// Validate accepts token only if it equals the live token stored for sessionID.
// Returns CodeTokenMissing when either value is empty and CodeTokenInvalid otherwise.
func (s *Service) Validate(ctx context.Context, sessionID, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCSRFValidate)
	defer func() { span.End(err) }()

	if sessionID == "" || token == "" {
		return s.reject(ctx, span, dErrors.CodeTokenMissing, models.MessageMissing, sessionID)
	}
	stored, ok := s.tokens.Get(ctx, sessionID)
	if !ok || !secrets.Equal(stored, token) {
		return s.reject(ctx, span, dErrors.CodeTokenInvalid, models.MessageInvalid, sessionID)
	}
	span.SetAttributes(tracer.Bool(tracer.AttrAllowed, true))
	return nil
}

func (s *Service) reject(ctx context.Context, span tracer.Span, code dErrors.Code, msg, sessionID string) error {
	span.SetAttributes(
		tracer.Bool(tracer.AttrAllowed, false),
		tracer.String(tracer.AttrReason, string(code)),
	)
	if s.metrics != nil {
		s.metrics.IncrementRejections(string(code))
	}
	s.audit.Log(ctx, audit.EventCSRFRejected,
		"subject", privacy.HashForLog(sessionID),
		"client_ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		"reason", string(code),
	)
	return dErrors.New(code, msg)
}

// Sweep drops expired tokens.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.tokens.Sweep(ctx), nil
}

// Len counts stored tokens, including expired ones not yet swept.
func (s *Service) Len() int {
	return s.tokens.Len()
}

// Package service issues and verifies one-time credentials for email verification and
// password reset.
//
// A credential is an opaque token for links plus a short numeric code for manual entry.
// Records are keyed by the SHA-256 of the token. Codes are only ever matched together with
// the email they were issued for.
package service

import (
	"context"
	"errors"
	"log/slog"

	"gatekeeper/internal/onetime/metrics"
	"gatekeeper/internal/onetime/models"
	"gatekeeper/internal/tokenstore"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/tracer"
	"gatekeeper/pkg/requestcontext"
	"gatekeeper/pkg/secrets"
)

// CodeDigits is the length of the manual-entry code.
const CodeDigits = 6

const (
	methodToken = "token"
	methodCode  = "code"
)

// Issuer owns one flow's record store. Safe for concurrent use.
type Issuer struct {
	policy  Policy
	records *tokenstore.Store[string, models.Record]
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(*Issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		i.logger = logger
	}
}

func WithAuditLogger(a *audit.Logger) Option {
	return func(i *Issuer) {
		i.audit = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Issuer) {
		i.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(i *Issuer) {
		if t != nil {
			i.tracer = t
		}
	}
}

func New(policy Policy, opts ...Option) (*Issuer, error) {
	if policy.Purpose == "" || policy.TTL <= 0 {
		return nil, errors.New("one-time policy needs a purpose and a positive TTL")
	}
	i := &Issuer{
		policy:  policy,
		records: tokenstore.New[string, models.Record](),
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// NewEmailVerification builds the 24 hour email verification issuer.
func NewEmailVerification(opts ...Option) *Issuer {
	i, _ := New(EmailVerificationPolicy(), opts...)
	return i
}

// NewPasswordReset builds the 1 hour, single-active password reset issuer.
func NewPasswordReset(opts ...Option) *Issuer {
	i, _ := New(PasswordResetPolicy(), opts...)
	return i
}

func (i *Issuer) Policy() Policy {
	return i.policy
}

// Create issues a credential for the principal. Under a single-active policy every earlier
// credential for the same email is invalidated in the same step.
func (i *Issuer) Create(ctx context.Context, principalID, email string) (cred *models.Credential, err error) {
	ctx, span := i.tracer.Start(ctx, tracer.SpanOneTimeCreate,
		tracer.String(tracer.AttrPurpose, string(i.policy.Purpose)),
	)
	defer func() { span.End(err) }()

	email = models.NormalizeEmail(email)
	if principalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal id is required")
	}
	if !models.IsValidEmail(email) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid email address")
	}

	token, err := secrets.HexToken(secrets.TokenBytes)
	if err != nil {
		return nil, err
	}
	code, err := secrets.NumericCode(CodeDigits)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	record := models.Record{
		PrincipalID: principalID,
		Email:       email,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(i.policy.TTL),
	}
	hash := secrets.SHA256Hex(token)
	if i.policy.SingleActivePerEmail {
		evicted := i.records.Replace(ctx, hash, record, i.policy.TTL, matchEmail(email))
		if evicted > 0 {
			i.logger.DebugContext(ctx, "invalidated earlier one-time credentials",
				"purpose", i.policy.Purpose,
				"evicted", evicted,
			)
		}
	} else {
		i.records.Put(ctx, hash, record, i.policy.TTL)
	}

	if i.metrics != nil {
		i.metrics.IncrementIssued(string(i.policy.Purpose))
	}
	i.audit.Log(ctx, audit.EventOneTimeIssued,
		"subject", email,
		"reason", string(i.policy.Purpose),
	)
	return &models.Credential{Token: token, Code: code}, nil
}

// VerifyToken resolves an opaque token. The record is left in place; callers delete it once
// the flow completes. An expired record is removed and reported as CodeTokenExpired, an
// unknown token as CodeTokenInvalid.
func (i *Issuer) VerifyToken(ctx context.Context, token string) (v *models.Verified, err error) {
	ctx, span := i.startVerify(ctx, methodToken)
	defer func() { i.endVerify(ctx, span, methodToken, err) }()

	if token == "" {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, i.policy.Messages.InvalidToken)
	}
	hash := secrets.SHA256Hex(token)
	record, lookup := i.records.Lookup(ctx, hash)
	switch lookup {
	case tokenstore.Found:
		return &models.Verified{PrincipalID: record.PrincipalID, Email: record.Email, HashedToken: hash}, nil
	case tokenstore.Expired:
		return nil, dErrors.New(dErrors.CodeTokenExpired, i.policy.Messages.ExpiredToken)
	default:
		return nil, dErrors.New(dErrors.CodeTokenInvalid, i.policy.Messages.InvalidToken)
	}
}

// VerifyCode matches code against the live records issued for email. An unknown email and a
// wrong code are indistinguishable to the caller.
func (i *Issuer) VerifyCode(ctx context.Context, email, code string) (v *models.Verified, err error) {
	ctx, span := i.startVerify(ctx, methodCode)
	defer func() { i.endVerify(ctx, span, methodCode, err) }()

	email = models.NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeCodeMismatch, i.policy.Messages.InvalidCode)
	}
	match := func(_ string, r models.Record) bool {
		return r.Email == email && secrets.Equal(r.Code, code)
	}
	hash, record, lookup := i.records.Find(ctx, match, i.policy.ConsumeOnCode)
	switch lookup {
	case tokenstore.Found:
		return &models.Verified{PrincipalID: record.PrincipalID, Email: record.Email, HashedToken: hash}, nil
	case tokenstore.Expired:
		return nil, dErrors.New(dErrors.CodeTokenExpired, i.policy.Messages.ExpiredCode)
	default:
		return nil, dErrors.New(dErrors.CodeCodeMismatch, i.policy.Messages.InvalidCode)
	}
}

// Delete removes the record of an opaque token.
func (i *Issuer) Delete(ctx context.Context, token string) bool {
	return i.DeleteByHash(ctx, secrets.SHA256Hex(token))
}

// DeleteByHash removes a record by its store key, as returned in Verified.HashedToken.
func (i *Issuer) DeleteByHash(ctx context.Context, hashedToken string) bool {
	return i.records.Delete(ctx, hashedToken)
}

// DeleteByEmail removes every record, live or expired, issued for email and returns how many
// were removed.
func (i *Issuer) DeleteByEmail(ctx context.Context, email string) int {
	return i.records.DeleteFunc(ctx, matchEmail(models.NormalizeEmail(email)))
}

// Sweep drops expired records.
func (i *Issuer) Sweep(ctx context.Context) (int, error) {
	return i.records.Sweep(ctx), nil
}

func (i *Issuer) Len() int {
	return i.records.Len()
}

func (i *Issuer) startVerify(ctx context.Context, method string) (context.Context, tracer.Span) {
	return i.tracer.Start(ctx, tracer.SpanOneTimeVerify,
		tracer.String(tracer.AttrPurpose, string(i.policy.Purpose)),
		tracer.String(tracer.AttrMethod, method),
	)
}

func (i *Issuer) endVerify(ctx context.Context, span tracer.Span, method string, err error) {
	outcome := "verified"
	event := audit.EventOneTimeVerified
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		event = audit.EventOneTimeRejected
	}
	span.SetAttributes(tracer.String(tracer.AttrReason, outcome))
	span.End(err)

	if i.metrics != nil {
		i.metrics.RecordVerification(string(i.policy.Purpose), method, outcome)
	}
	i.audit.Log(ctx, event,
		"reason", outcome,
		"purpose", string(i.policy.Purpose),
		"method", method,
	)
}

func matchEmail(email string) func(string, models.Record) bool {
	return func(_ string, r models.Record) bool {
		return r.Email == email
	}
}

package service

import (
	"context"
	"log/slog"

	"gatekeeper/internal/onetime/metrics"
	"gatekeeper/internal/onetime/models"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/requestcontext"
)

//go:generate mockgen -source=notifier.go -destination=../mocks/mocks.go -package=mocks Sender

// Sender delivers a one-time credential to its principal, typically by email.
type Sender interface {
	Send(ctx context.Context, msg models.Message) error
}

// Notifier issues a credential and hands it to a Sender. Delivery failures are logged and
// audited but never fail the caller: the response to the client must not reveal whether an
// email went out.
type Notifier struct {
	issuer  *Issuer
	sender  Sender
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
}

type NotifierOption func(*Notifier)

func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithNotifierAudit(a *audit.Logger) NotifierOption {
	return func(n *Notifier) {
		n.audit = a
	}
}

func WithNotifierMetrics(m *metrics.Metrics) NotifierOption {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func NewNotifier(issuer *Issuer, sender Sender, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		issuer: issuer,
		sender: sender,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// CreateAndSend issues a credential for the principal and sends it. name falls back to one
// derived from the email. Only issuance errors are returned.
func (n *Notifier) CreateAndSend(ctx context.Context, principalID, email, name string) (*models.Credential, error) {
	cred, err := n.issuer.Create(ctx, principalID, email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = models.DisplayNameFromEmail(email)
	}

	purpose := n.issuer.Policy().Purpose
	msg := models.Message{
		Purpose: purpose,
		To:      models.NormalizeEmail(email),
		Name:    name,
		Code:    cred.Code,
		Token:   cred.Token,
	}
	if n.sender == nil {
		return cred, nil
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.ErrorContext(ctx, "failed to send one-time credential",
			"error", err,
			"purpose", purpose,
			"request_id", requestcontext.RequestID(ctx),
		)
		if n.metrics != nil {
			n.metrics.IncrementNotificationFailures(string(purpose))
		}
		n.audit.Log(ctx, audit.EventNotificationFailed,
			"subject", msg.To,
			"reason", string(purpose),
		)
	}
	return cred, nil
}

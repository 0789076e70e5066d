// Package ipfilter admits or rejects requests by client address before any other gate
// spends work on them. A deny list always wins; a non-empty allow list admits only its
// members.
package ipfilter

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gatekeeper/internal/ipfilter/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/privacy"
)

// Store holds the deny and allow lists.
type Store interface {
	Add(ctx context.Context, list models.List, prefix netip.Prefix) error
	Contains(ctx context.Context, list models.List, addr netip.Addr) (bool, error)
	Count(ctx context.Context, list models.List) (int, error)
}

// Rejection reasons, recorded in audit events and the denied counter.
const (
	ReasonDenied     = "deny_list"
	ReasonNotAllowed = "not_on_allow_list"
)

type Filter struct {
	store  Store
	logger *slog.Logger
	audit  *audit.Logger
	denied *prometheus.CounterVec
}

type Option func(*Filter)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

func WithAuditLogger(a *audit.Logger) Option {
	return func(f *Filter) {
		f.audit = a
	}
}

// WithRegisterer exports the rejected request counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(f *Filter) {
		f.denied = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_ip_filter_denied_total",
			Help: "Requests rejected by the client address filter",
		}, []string{"reason"})
	}
}

func New(store Store, opts ...Option) (*Filter, error) {
	if store == nil {
		return nil, errors.New("ip filter store is required")
	}
	f := &Filter{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Load puts every prefix on list.
func (f *Filter) Load(ctx context.Context, list models.List, prefixes []netip.Prefix) error {
	for _, prefix := range prefixes {
		if err := f.store.Add(ctx, list, prefix); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ip filter")
		}
	}
	return nil
}

// Admit decides whether clientIP may proceed. An address that does not parse can never match
// the deny list but is rejected whenever an allow list is configured. reason is empty when
// the request is admitted.
func (f *Filter) Admit(ctx context.Context, clientIP string) (admitted bool, reason string, err error) {
	addr, _ := netip.ParseAddr(clientIP)

	denied, err := f.store.Contains(ctx, models.ListDeny, addr)
	if err != nil {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check deny list")
	}
	if denied {
		f.reject(ctx, clientIP, ReasonDenied)
		return false, ReasonDenied, nil
	}

	allowSize, err := f.store.Count(ctx, models.ListAllow)
	if err != nil {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check allow list")
	}
	if allowSize == 0 {
		return true, "", nil
	}
	allowed, err := f.store.Contains(ctx, models.ListAllow, addr)
	if err != nil {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check allow list")
	}
	if !allowed {
		f.reject(ctx, clientIP, ReasonNotAllowed)
		return false, ReasonNotAllowed, nil
	}
	return true, "", nil
}

func (f *Filter) reject(ctx context.Context, clientIP, reason string) {
	if f.denied != nil {
		f.denied.WithLabelValues(reason).Inc()
	}
	f.audit.Log(ctx, audit.EventAccessDenied,
		"client_ip", privacy.AnonymizeIP(clientIP),
		"reason", reason,
	)
}

// Package globalthrottle caps the total request rate of one instance, independently of any
// per-client key. It protects the process itself when per-key limits are spread over many
// addresses.
package globalthrottle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"gatekeeper/pkg/requestcontext"
)

// Defaults for an instance with no explicit configuration.
const (
	DefaultPerSecond = 1000
	DefaultBurst     = 2000
)

type Service struct {
	limiter   *rate.Limiter
	logger    *slog.Logger
	throttled prometheus.Counter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRegisterer exports the throttled request counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.throttled = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_global_throttled_total",
			Help: "Requests rejected by the per-instance global throttle",
		})
	}
}

// New builds a token bucket refilled at perSecond with room for burst requests.
func New(perSecond float64, burst int, opts ...Option) (*Service, error) {
	if perSecond <= 0 || burst <= 0 {
		return nil, errors.New("global throttle rate and burst must be positive")
	}
	s := &Service{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allow takes one token at the request time carried by ctx.
func (s *Service) Allow(ctx context.Context) bool {
	if s.limiter.AllowN(requestcontext.Now(ctx), 1) {
		return true
	}
	if s.throttled != nil {
		s.throttled.Inc()
	}
	return false
}

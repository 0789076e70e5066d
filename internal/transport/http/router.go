package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	csrfHandler "gatekeeper/internal/csrf/handler"
	csrfMiddleware "gatekeeper/internal/csrf/middleware"
	"gatekeeper/internal/globalthrottle"
	"gatekeeper/internal/ipfilter"
	"gatekeeper/internal/platform/health"
	ratelimitConfig "gatekeeper/internal/ratelimit/config"
	ratelimitMiddleware "gatekeeper/internal/ratelimit/middleware"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/middleware/metadata"
	"gatekeeper/pkg/platform/middleware/request"
	"gatekeeper/pkg/platform/middleware/requesttime"
	"gatekeeper/pkg/platform/middleware/security"
)

// DefaultMaxBodyBytes bounds request bodies when RouterDeps.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// RouterDeps are the already constructed gates and handlers the router wires together.
// Auth, Health and Metrics are optional.
type RouterDeps struct {
	Logger         *slog.Logger
	RequestMetrics *request.Metrics
	Metadata       *metadata.Middleware
	IPFilter       *ipfilter.Filter
	GlobalThrottle *globalthrottle.Service
	RateLimits     *ratelimitMiddleware.Middleware
	Policies       *ratelimitConfig.Config
	CSRF           *csrfMiddleware.Middleware
	CSRFHandler    *csrfHandler.Handler
	Auth           *AuthHandler
	Health         *health.Handler
	Metrics        prometheus.Gatherer
	MaxBodyBytes   int64
	// HSTS adds Strict-Transport-Security to every response.
	HSTS bool
}

// NewRouter wires all public endpoints with middleware. Every request passes, in order:
// security headers, panic recovery, request id, pinned request time, client metadata, access
// log, body limit, the ip filter and the global throttle. Routes under /api then pass the API
// rate limit and CSRF protection, and the auth routes add their own policy on top.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policies := d.Policies
	if policies == nil {
		policies = ratelimitConfig.DefaultConfig()
	}
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(security.Headers(d.HSTS))
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadataOrDefault(d.Metadata).Handler)
	r.Use(request.Logger(logger, d.RequestMetrics))
	r.Use(request.BodyLimit(maxBody))
	if d.IPFilter != nil {
		r.Use(d.IPFilter.Middleware)
	}
	if d.GlobalThrottle != nil {
		r.Use(d.GlobalThrottle.Middleware)
	}

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if d.RateLimits != nil {
			r.Use(d.RateLimits.Limit(policies.API))
		}
		if d.CSRF != nil {
			r.Use(d.CSRF.Protect)
		}
		if d.CSRFHandler != nil {
			d.CSRFHandler.Register(r)
		}

		r.Route("/auth", func(r chi.Router) {
			if d.Auth == nil {
				r.HandleFunc("/*", notImplemented)
				return
			}
			var limits RouteLimits
			if d.RateLimits != nil {
				limits = RouteLimits{
					Login:         d.RateLimits.Limit(policies.Auth),
					Register:      d.RateLimits.Limit(policies.Register),
					PasswordReset: d.RateLimits.Limit(policies.PasswordReset),
				}
			}
			d.Auth.Register(r, limits)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Envelope{Message: "Route not found"})
	})
	return r
}

func metadataOrDefault(m *metadata.Middleware) *metadata.Middleware {
	if m == nil {
		return metadata.NewMiddleware(nil)
	}
	return m
}

func notImplemented(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusNotImplemented, httputil.Envelope{Message: "Authentication is not configured"})
}

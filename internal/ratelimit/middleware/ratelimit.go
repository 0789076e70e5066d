package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"gatekeeper/internal/ratelimit/config"
	"gatekeeper/internal/ratelimit/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/requestcontext"
)

// EmailField is the body field the email-keyed policies read.
const EmailField = "email"

type RateLimiter interface {
	AllowPolicy(ctx context.Context, policy config.Policy, key string) (*models.Decision, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit enforces policy on every request. Denials get 429 with Retry-After and
// {success:false, message, retryAfter}. A limiter failure is fail-closed: 503.
func (m *Middleware) Limit(policy config.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			var email string
			if policy.KeyByEmail {
				email = httputil.PeekField(r, EmailField)
			}

			decision, err := m.limiter.AllowPolicy(ctx, policy, policy.Key(ip, email))
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed, rejecting request",
					"error", err,
					"policy", policy.Name,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "Service temporarily unavailable"))
				return
			}

			addRateLimitHeaders(w, decision)
			if !decision.Allowed {
				httputil.WriteRetryAfter(w, http.StatusTooManyRequests, policy.Message, decision.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// addRateLimitHeaders adds X-RateLimit-* headers to the response.
func addRateLimitHeaders(w http.ResponseWriter, d *models.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

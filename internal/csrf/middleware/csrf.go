package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gatekeeper/internal/csrf/models"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/requestcontext"
)

type Validator interface {
	Validate(ctx context.Context, sessionID, token string) error
}

type Middleware struct {
	validator Validator
	logger    *slog.Logger
}

func New(validator Validator, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{validator: validator, logger: logger}
}

// Protect rejects state-changing browser requests that do not present the token issued for
// their session. Safe methods and bearer-authenticated requests pass through untouched.
func (m *Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || hasBearer(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if err := m.validator.Validate(ctx, sessionID(r), token(r)); err != nil {
			m.logger.WarnContext(ctx, "csrf check failed",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// hasBearer matches any Authorization value starting with "Bearer". Browsers never attach
// such a header on their own, so these clients are not exposed to CSRF.
func hasBearer(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer")
}

func token(r *http.Request) string {
	if t := r.Header.Get(models.HeaderToken); t != "" {
		return t
	}
	return httputil.PeekField(r, models.FormField)
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(models.HeaderSessionID); id != "" {
		return id
	}
	if c, err := r.Cookie(models.CookieSessionID); err == nil {
		return c.Value
	}
	return ""
}

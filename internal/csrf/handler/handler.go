package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/csrf/models"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/requestcontext"
)

// DefaultCookieMaxAge is the session cookie lifetime in seconds (24 hours).
const DefaultCookieMaxAge = 24 * 60 * 60

type Issuer interface {
	Issue(ctx context.Context) (*models.IssuedToken, error)
}

// Handler serves the CSRF token endpoint.
type Handler struct {
	issuer       Issuer
	logger       *slog.Logger
	secure       bool
	cookieMaxAge int
}

// New creates a Handler. secure marks the session cookie Secure and should be true in
// production; a non-positive cookieMaxAge uses DefaultCookieMaxAge.
func New(issuer Issuer, logger *slog.Logger, secure bool, cookieMaxAge int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cookieMaxAge <= 0 {
		cookieMaxAge = DefaultCookieMaxAge
	}
	return &Handler{
		issuer:       issuer,
		logger:       logger,
		secure:       secure,
		cookieMaxAge: cookieMaxAge,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/csrf-token", h.HandleGetToken)
}

// HandleGetToken implements GET /api/csrf-token.
//
// Output: { "success": true, "data": { "csrfToken": "...", "sessionId": "..." } }
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issued, err := h.issuer.Issue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue csrf token",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     models.CookieSessionID,
		Value:    issued.SessionID,
		Path:     "/",
		MaxAge:   h.cookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteSuccess(w, http.StatusOK, issued)
}

package ipfilter

import (
	"net/http"

	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/requestcontext"
)

// Message is returned with every rejected request.
const Message = "Access denied"

// Middleware answers 403 {success:false, message:"Access denied"} for rejected addresses.
// A store failure is fail-closed: 503.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		admitted, reason, err := f.Admit(ctx, ip)
		if err != nil {
			f.logger.ErrorContext(ctx, "ip filter check failed, rejecting request",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "Service temporarily unavailable"))
			return
		}
		if !admitted {
			f.logger.WarnContext(ctx, "request rejected by ip filter",
				"reason", reason,
				"ip_prefix", privacy.AnonymizeIP(ip),
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteJSON(w, http.StatusForbidden, httputil.Envelope{Message: Message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

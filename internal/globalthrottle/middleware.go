package globalthrottle

import (
	"net/http"

	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/requestcontext"
)

// Message is returned with every throttled response.
const Message = "Service is busy, please retry shortly"

// Middleware answers 503 with Retry-After: 1 once the instance is over its rate.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !s.Allow(ctx) {
			s.logger.WarnContext(ctx, "global throttle triggered",
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteRetryAfter(w, http.StatusServiceUnavailable, Message, 1)
			return
		}
		next.ServeHTTP(w, r)
	})
}

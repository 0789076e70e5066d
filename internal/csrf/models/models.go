package models

import "time"

const (
	HeaderToken     = "X-CSRF-Token"
	HeaderSessionID = "X-Session-ID"
	// FormField is the body field carrying the token when the header is absent.
	FormField = "_csrf"
	// CookieSessionID carries the session identifier when the header is absent.
	CookieSessionID = "sessionId"

	DefaultTokenTTL = time.Hour
)

// Rejection messages. Both are 403; the wording only helps diagnose a client.
const (
	MessageMissing = "CSRF token missing"
	MessageInvalid = "Invalid CSRF token"
)

// IssuedToken is a freshly minted session identifier and its token. The two values are
// drawn independently.
type IssuedToken struct {
	Token     string `json:"csrfToken"`
	SessionID string `json:"sessionId"`
}

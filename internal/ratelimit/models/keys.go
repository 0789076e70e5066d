package models

import (
	"strings"

	pstrings "gatekeeper/pkg/platform/strings"
)

// KeyPrefix scopes a rate limit key to a flow.
type KeyPrefix string

const (
	// KeyPrefixNone keys by the client IP alone.
	KeyPrefixNone     KeyPrefix = ""
	KeyPrefixAuth     KeyPrefix = "auth"
	KeyPrefixRegister KeyPrefix = "register"
	KeyPrefixReset    KeyPrefix = "reset"
)

// NewKey builds "prefix:ip[:email]" or the bare ip when prefix is empty.
// Segments are escaped so that values containing ':' cannot collide with another
// bucket. Emails are trimmed and lowercased.
func NewKey(prefix KeyPrefix, ip string, withEmail bool, email string) string {
	var b strings.Builder
	if prefix != KeyPrefixNone {
		b.WriteString(string(prefix))
		b.WriteByte(':')
	}
	b.WriteString(pstrings.EscapeKeySegment(ip))
	if withEmail {
		b.WriteByte(':')
		b.WriteString(pstrings.EscapeKeySegment(NormalizeEmail(email)))
	}
	return b.String()
}

// NormalizeEmail trims and lowercases an email for use as a counter identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

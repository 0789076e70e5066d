// Package fingerprint derives a session fingerprint from request attributes so callers can
// tell when a session is presented from a different client profile.
//
// Nothing is stored here: callers keep the fingerprint taken at session start and compare
// it with Validate on later requests.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mssola/useragent"

	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/requestcontext"
	"gatekeeper/pkg/secrets"
)

// Attributes are the request inputs of a fingerprint.
type Attributes struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	ClientIP       string
}

// FromContext reads the attributes captured by the metadata middleware.
func FromContext(ctx context.Context) Attributes {
	md := requestcontext.Client(ctx)
	return Attributes{
		UserAgent:      md.UserAgent,
		AcceptLanguage: md.AcceptLanguage,
		AcceptEncoding: md.AcceptEncoding,
		ClientIP:       md.IP,
	}
}

// Compute returns the SHA-256 hex of "ua|lang|enc|ip". Missing attributes hash as empty
// strings, so the result is always defined.
func Compute(a Attributes) string {
	data := strings.Join([]string{a.UserAgent, a.AcceptLanguage, a.AcceptEncoding, a.ClientIP}, "|")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Validate recomputes the fingerprint of a and compares it with stored in constant time.
func Validate(a Attributes, stored string) bool {
	return secrets.Equal(Compute(a), stored)
}

// DeviceClass hashes the coarse device profile (browser, major version, OS, form factor).
// Unlike Compute it ignores the IP and headers that change between networks, so a match
// with a failed Validate points at a network change rather than a different device.
func DeviceClass(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()

	major := "unknown"
	if v, _, _ := strings.Cut(version, "."); v != "" {
		major = v
	}
	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}

	data := fmt.Sprintf("%s|%s|%s|%s", orUnknown(browser), major, orUnknown(ua.OS()), platform)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func orUnknown(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

// DeviceLabel renders a User-Agent as "Browser on OS" for security events, e.g.
// "Chrome on macOS" or "Safari on iPhone".
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Checker validates the fingerprint of the current request and audits mismatches.
type Checker struct {
	audit *audit.Logger
}

func NewChecker(auditLogger *audit.Logger) *Checker {
	return &Checker{audit: auditLogger}
}

// Check compares the request in ctx with stored. On mismatch a fingerprint_changed event is
// recorded with the current device label and device class.
func (c *Checker) Check(ctx context.Context, subject, stored string) bool {
	attrs := FromContext(ctx)
	if Validate(attrs, stored) {
		return true
	}
	c.audit.Log(ctx, audit.EventFingerprintChanged,
		"subject", subject,
		"client_ip", privacy.AnonymizeIP(attrs.ClientIP),
		"device", DeviceLabel(attrs.UserAgent),
		"device_class", DeviceClass(attrs.UserAgent),
	)
	return false
}

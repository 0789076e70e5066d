package audit

import (
	"time"
)

// Event is a security-relevant decision taken by one of the gates. It never carries raw
// secrets: Subject is an email or an opaque key, ClientIP is already anonymized.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Subject   string
	ClientIP  string
	Device    string
	Reason    string
	RequestID string
}

type EventType string

const (
	EventRateLimited        EventType = "rate_limited"
	EventLoginFailed        EventType = "login_failed"
	EventAccountLocked      EventType = "account_locked"
	EventLockoutReset       EventType = "lockout_reset"
	EventCSRFIssued         EventType = "csrf_issued"
	EventCSRFRejected       EventType = "csrf_rejected"
	EventOneTimeIssued      EventType = "onetime_issued"
	EventOneTimeVerified    EventType = "onetime_verified"
	EventOneTimeRejected    EventType = "onetime_rejected"
	EventNotificationFailed EventType = "notification_failed"
	EventFingerprintChanged EventType = "fingerprint_changed"
	EventAccessDenied       EventType = "access_denied"
)

package models

import "time"

// Purpose names the flow a one-time credential belongs to.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Record is what the store keeps under the SHA-256 of the opaque token. The raw token is
// never stored.
type Record struct {
	PrincipalID string
	Email       string
	Code        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Credential is handed to the principal once, by email. Token goes in a link, Code is
// typed in by hand.
type Credential struct {
	Token string
	Code  string
}

// Verified identifies the principal behind a successfully verified credential.
// HashedToken is the store key, for a later DeleteByHash once the flow completes.
type Verified struct {
	PrincipalID string
	Email       string
	HashedToken string
}

// Message is one notification to deliver to a principal.
type Message struct {
	Purpose Purpose
	To      string
	Name    string
	Code    string
	Token   string
}

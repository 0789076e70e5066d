package service

import (
	"time"

	"gatekeeper/internal/onetime/models"
)

// Policy is what differs between the one-time credential flows.
type Policy struct {
	Purpose models.Purpose
	TTL     time.Duration
	// SingleActivePerEmail evicts every earlier credential for the email on Create.
	SingleActivePerEmail bool
	// ConsumeOnCode deletes the record when its code verifies.
	ConsumeOnCode bool
	Messages      Messages
}

// Messages are the client-facing rejection texts of a flow.
type Messages struct {
	InvalidToken string
	ExpiredToken string
	InvalidCode  string
	ExpiredCode  string
}

// EmailVerificationPolicy allows several outstanding credentials per email; a verified
// code is single use.
func EmailVerificationPolicy() Policy {
	return Policy{
		Purpose:       models.PurposeEmailVerification,
		TTL:           24 * time.Hour,
		ConsumeOnCode: true,
		Messages: Messages{
			InvalidToken: "Invalid verification token",
			ExpiredToken: "Verification token has expired",
			InvalidCode:  "Invalid verification code",
			ExpiredCode:  "Verification code has expired",
		},
	}
}

// PasswordResetPolicy keeps at most one live credential per email. A verified code is kept
// until the password change completes and the caller deletes it by hash.
func PasswordResetPolicy() Policy {
	return Policy{
		Purpose:              models.PurposePasswordReset,
		TTL:                  time.Hour,
		SingleActivePerEmail: true,
		Messages: Messages{
			InvalidToken: "Invalid reset token",
			ExpiredToken: "Reset token has expired",
			InvalidCode:  "Invalid reset code",
			ExpiredCode:  "Reset code has expired",
		},
	}
}

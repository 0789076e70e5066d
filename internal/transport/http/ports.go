package httptransport

import (
	"context"

	lockoutModels "gatekeeper/internal/lockout/models"
	onetimeModels "gatekeeper/internal/onetime/models"
)

// LockoutGuard is the account lockout consulted around credential checks.
type LockoutGuard interface {
	IsLocked(ctx context.Context, identity, origin string) (lockoutModels.Status, error)
	RecordFailedAttempt(ctx context.Context, identity, origin string) (*lockoutModels.Record, error)
	ResetAttempts(ctx context.Context, identity, origin string) error
	RemainingAttempts(ctx context.Context, identity, origin string) (int, error)
}

// CredentialVerifier checks one-time credentials of a single purpose.
type CredentialVerifier interface {
	VerifyToken(ctx context.Context, token string) (*onetimeModels.Verified, error)
	VerifyCode(ctx context.Context, email, code string) (*onetimeModels.Verified, error)
	DeleteByHash(ctx context.Context, hashedToken string) bool
	DeleteByEmail(ctx context.Context, email string) int
}

// CredentialNotifier issues a one-time credential and delivers it to the principal.
type CredentialNotifier interface {
	CreateAndSend(ctx context.Context, principalID, email, name string) (*onetimeModels.Credential, error)
}

// FingerprintChecker compares the current request with a fingerprint taken at login.
type FingerprintChecker interface {
	Check(ctx context.Context, subject, stored string) bool
}

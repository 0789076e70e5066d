package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	accountModels "gatekeeper/internal/accounts/models"
	"gatekeeper/internal/fingerprint"
	lockoutHandler "gatekeeper/internal/lockout/handler"
	onetimeModels "gatekeeper/internal/onetime/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/privacy"
	"gatekeeper/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_auth.go -destination=mocks/auth-mocks.go -package=mocks Accounts

// Accounts owns principal records. Hashing and persistence live behind it.
type Accounts interface {
	Register(ctx context.Context, name, email, password string) (*accountModels.Account, error)
	// Authenticate reports ok=false for an unknown email and a wrong password alike.
	Authenticate(ctx context.Context, email, password string) (*accountModels.Account, bool, error)
	FindByEmail(ctx context.Context, email string) (*accountModels.Account, error)
	SetPassword(ctx context.Context, id, password string) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// Response messages.
const (
	MessageLoginMissingFields    = "Please provide email and password"
	MessageLoginSuccess          = "Login successful"
	MessageAccountInactive       = "Account is inactive. Please contact support."
	MessageVerifyFirst           = "Please verify your email first. A new verification code has been sent."
	MessageRegisterMissingFields = "Please provide name, email and password"
	MessageInvalidEmail          = "Please provide a valid email address"
	MessageWeakPassword          = "Password does not meet security requirements"
	MessageRegisterSuccess       = "Registration successful. Please check your email to verify your account."
	MessageVerifyMissingFields   = "Please provide email and verification code"
	MessageEmailVerified         = "Email verified successfully"
	MessageEmailMissing          = "Please provide email address"
	MessageVerificationSent      = "If your email is registered, you will receive a verification code."
	MessageResetSent             = "If your email is registered, you will receive a password reset code."
	MessageResetMissingFields    = "Please provide email, code, and new password"
	MessagePasswordReset         = "Password reset successfully. You can now login with your new password."
	MessageFingerprintMissing    = "Please provide email and fingerprint"
	MessageInvalidBody           = "Invalid request body"
	MessageBodyTooLarge          = "Request body too large"
)

// AuthDeps are the collaborators of the auth flows. Fingerprints is optional.
type AuthDeps struct {
	Accounts             Accounts
	Lockout              LockoutGuard
	Verification         CredentialVerifier
	VerificationNotifier CredentialNotifier
	Reset                CredentialVerifier
	ResetNotifier        CredentialNotifier
	Fingerprints         FingerprintChecker
	Logger               *slog.Logger
}

// AuthHandler serves the credential flows that sit behind the gates: login under the
// lockout guard, and the email verification and password reset flows on one-time
// credentials.
type AuthHandler struct {
	AuthDeps
}

func NewAuthHandler(deps AuthDeps) *AuthHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &AuthHandler{AuthDeps: deps}
}

// RouteLimits wraps individual routes with their rate limit policy. Nil entries leave a
// route unlimited.
type RouteLimits struct {
	Login         func(http.Handler) http.Handler
	Register      func(http.Handler) http.Handler
	PasswordReset func(http.Handler) http.Handler
}

// Register mounts the auth routes on r.
func (h *AuthHandler) Register(r chi.Router, limits RouteLimits) {
	r.With(optional(limits.Register)...).Post("/register", h.HandleRegister)
	r.With(optional(limits.Login)...).Post("/login", h.HandleLogin)
	r.Post("/verify-email", h.HandleVerifyEmail)
	r.Post("/resend-verification", h.HandleResendVerification)
	r.With(optional(limits.PasswordReset)...).Post("/forgot-password", h.HandleForgotPassword)
	r.With(optional(limits.PasswordReset)...).Post("/reset-password", h.HandleResetPassword)
	r.Post("/fingerprint", h.HandleFingerprintCheck)
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type fingerprintRequest struct {
	Email       string `json:"email"`
	Fingerprint string `json:"fingerprint"`
}

type userResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"isVerified"`
}

type loginResponse struct {
	User        userResponse `json:"user"`
	Fingerprint string       `json:"fingerprint"`
}

type weakPasswordResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

type verificationRequiredResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// HandleLogin checks the lockout before verifying credentials, records a failure on any
// credential mismatch and clears the counter on success.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, false, MessageLoginMissingFields)
		return
	}
	identity := onetimeModels.NormalizeEmail(req.Email)
	origin := requestcontext.ClientIP(ctx)

	status, err := h.Lockout.IsLocked(ctx, identity, origin)
	if err != nil {
		h.fail(ctx, w, "lockout check failed", err)
		return
	}
	if status.Locked {
		lockoutHandler.WriteLocked(w, status)
		return
	}

	acct, ok, err := h.Accounts.Authenticate(ctx, identity, req.Password)
	if err != nil {
		h.fail(ctx, w, "credential check failed", err)
		return
	}
	if !ok {
		h.rejectCredentials(ctx, w, identity, origin)
		return
	}

	if !acct.Active {
		writeMessage(w, http.StatusUnauthorized, false, MessageAccountInactive)
		return
	}
	if !acct.Verified {
		if _, err := h.VerificationNotifier.CreateAndSend(ctx, acct.ID, acct.Email, acct.Name); err != nil {
			h.fail(ctx, w, "verification reissue failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusForbidden, verificationRequiredResponse{
			Message:              MessageVerifyFirst,
			RequiresVerification: true,
		})
		return
	}

	if err := h.Lockout.ResetAttempts(ctx, identity, origin); err != nil {
		h.fail(ctx, w, "lockout reset failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Envelope{
		Success: true,
		Message: MessageLoginSuccess,
		Data: loginResponse{
			User:        toUserResponse(acct),
			Fingerprint: fingerprint.Compute(fingerprint.FromContext(ctx)),
		},
	})
}

func (h *AuthHandler) rejectCredentials(ctx context.Context, w http.ResponseWriter, identity, origin string) {
	if _, err := h.Lockout.RecordFailedAttempt(ctx, identity, origin); err != nil {
		h.fail(ctx, w, "lockout record failed", err)
		return
	}
	remaining, err := h.Lockout.RemainingAttempts(ctx, identity, origin)
	if err != nil {
		h.fail(ctx, w, "lockout lookup failed", err)
		return
	}
	lockoutHandler.WriteInvalidCredentials(w, remaining)
}

// HandleRegister creates an account and sends its first verification credential.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, false, MessageRegisterMissingFields)
		return
	}
	if !onetimeModels.IsValidEmail(req.Email) {
		writeMessage(w, http.StatusBadRequest, false, MessageInvalidEmail)
		return
	}
	if problems := accountModels.ValidatePasswordStrength(req.Password); len(problems) > 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, weakPasswordResponse{Message: MessageWeakPassword, Errors: problems})
		return
	}

	acct, err := h.Accounts.Register(ctx, name, onetimeModels.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			writeMessage(w, http.StatusBadRequest, false, err.Error())
			return
		}
		h.fail(ctx, w, "account registration failed", err)
		return
	}
	if _, err := h.VerificationNotifier.CreateAndSend(ctx, acct.ID, acct.Email, acct.Name); err != nil {
		h.fail(ctx, w, "verification issue failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Envelope{
		Success: true,
		Message: MessageRegisterSuccess,
		Data:    map[string]userResponse{"user": toUserResponse(acct)},
	})
}

// HandleVerifyEmail accepts either the link token or the email and typed code.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		verified *onetimeModels.Verified
		err      error
	)
	switch {
	case req.Token != "":
		verified, err = h.Verification.VerifyToken(ctx, req.Token)
	case strings.TrimSpace(req.Email) != "" && req.Code != "":
		verified, err = h.Verification.VerifyCode(ctx, req.Email, req.Code)
	default:
		writeMessage(w, http.StatusBadRequest, false, MessageVerifyMissingFields)
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.Accounts.MarkEmailVerified(ctx, verified.PrincipalID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "User not found"))
			return
		}
		h.fail(ctx, w, "mark verified failed", err)
		return
	}
	// Every outstanding verification credential for the address is spent.
	h.Verification.DeleteByEmail(ctx, verified.Email)
	writeMessage(w, http.StatusOK, true, MessageEmailVerified)
}

// HandleResendVerification answers the same way whether or not the email is registered.
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeMessage(w, http.StatusBadRequest, false, MessageEmailMissing)
		return
	}

	if acct := h.lookup(ctx, req.Email); acct != nil && !acct.Verified {
		if _, err := h.VerificationNotifier.CreateAndSend(ctx, acct.ID, acct.Email, acct.Name); err != nil {
			h.fail(ctx, w, "verification reissue failed", err)
			return
		}
	}
	writeMessage(w, http.StatusOK, true, MessageVerificationSent)
}

// HandleForgotPassword answers the same way whether or not the email is registered.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeMessage(w, http.StatusBadRequest, false, MessageEmailMissing)
		return
	}

	if acct := h.lookup(ctx, req.Email); acct != nil && acct.Active {
		if _, err := h.ResetNotifier.CreateAndSend(ctx, acct.ID, acct.Email, acct.Name); err != nil {
			h.fail(ctx, w, "reset issue failed", err)
			return
		}
	}
	writeMessage(w, http.StatusOK, true, MessageResetSent)
}

// HandleResetPassword verifies the reset code, sets the new password and only then
// invalidates the credential.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Code == "" || req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, false, MessageResetMissingFields)
		return
	}
	if problems := accountModels.ValidatePasswordStrength(req.NewPassword); len(problems) > 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, weakPasswordResponse{Message: MessageWeakPassword, Errors: problems})
		return
	}

	verified, err := h.Reset.VerifyCode(ctx, req.Email, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.Accounts.SetPassword(ctx, verified.PrincipalID, req.NewPassword); err != nil {
		h.fail(ctx, w, "password update failed", err)
		return
	}
	h.Reset.DeleteByHash(ctx, verified.HashedToken)
	if err := h.Lockout.ResetAttempts(ctx, verified.Email, requestcontext.ClientIP(ctx)); err != nil {
		h.Logger.WarnContext(ctx, "lockout reset after password reset failed", "error", err)
	}
	writeMessage(w, http.StatusOK, true, MessagePasswordReset)
}

// HandleFingerprintCheck reports whether the current client still matches the fingerprint
// returned at login. A mismatch is audited by the checker.
func (h *AuthHandler) HandleFingerprintCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req fingerprintRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Fingerprint == "" {
		writeMessage(w, http.StatusBadRequest, false, MessageFingerprintMissing)
		return
	}

	var match bool
	if h.Fingerprints != nil {
		match = h.Fingerprints.Check(ctx, onetimeModels.NormalizeEmail(req.Email), req.Fingerprint)
	} else {
		match = fingerprint.Validate(fingerprint.FromContext(ctx), req.Fingerprint)
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]bool{"match": match})
}

// lookup returns nil for unknown emails. Lookup failures are logged and treated as unknown
// so the response stays the same.
func (h *AuthHandler) lookup(ctx context.Context, email string) *accountModels.Account {
	acct, err := h.Accounts.FindByEmail(ctx, email)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.Logger.ErrorContext(ctx, "account lookup failed",
				"error", err,
				"email_hash", privacy.HashForLog(onetimeModels.NormalizeEmail(email)),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil
	}
	return acct
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, false, MessageBodyTooLarge)
			return false
		}
		writeMessage(w, http.StatusBadRequest, false, MessageInvalidBody)
		return false
	}
	return true
}

func (h *AuthHandler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.Logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	httputil.WriteJSON(w, status, httputil.Envelope{Success: success, Message: message})
}

func toUserResponse(a *accountModels.Account) userResponse {
	return userResponse{ID: a.ID, Name: a.Name, Email: a.Email, Verified: a.Verified}
}

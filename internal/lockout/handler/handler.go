// Package handler writes the HTTP responses of the lockout flow.
package handler

import (
	"fmt"
	"net/http"

	"gatekeeper/internal/lockout/models"
	"gatekeeper/pkg/platform/httputil"
)

// InvalidCredentialsMessage is returned on every failed credential check, whatever the cause.
const InvalidCredentialsMessage = "Invalid credentials"

type invalidCredentialsResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

// WriteLocked writes 423 with Retry-After and a message stating the wait in minutes.
func WriteLocked(w http.ResponseWriter, status models.Status) {
	httputil.WriteRetryAfter(w, http.StatusLocked, LockedMessage(status.RemainingSeconds), status.RemainingSeconds)
}

// LockedMessage renders the lock wait rounded up to whole minutes.
func LockedMessage(remainingSeconds int) string {
	minutes := (remainingSeconds + 59) / 60
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Account temporarily locked. Please try again in %d %s.", minutes, unit)
}

// WriteInvalidCredentials writes 401 with the number of attempts left before lockout.
func WriteInvalidCredentials(w http.ResponseWriter, remaining int) {
	httputil.WriteJSON(w, http.StatusUnauthorized, invalidCredentialsResponse{
		Message:           InvalidCredentialsMessage,
		RemainingAttempts: remaining,
	})
}

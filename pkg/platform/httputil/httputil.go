package httputil

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	dErrors "gatekeeper/pkg/domain-errors"
)

// Envelope is the JSON shape of every response written by the gates.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// genericInternalMessage is returned instead of the underlying error text for internal failures.
const genericInternalMessage = "Internal server error"

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteSuccess writes {success:true, data}.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteError centralizes domain error translation to HTTP responses.
// Internal and foreign errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, Envelope{Message: genericInternalMessage})
		return
	}

	status := DomainCodeToHTTPStatus(domainErr.Code)
	msg := domainErr.Message
	if status == http.StatusInternalServerError || msg == "" {
		msg = defaultMessage(domainErr.Code)
	}
	WriteJSON(w, status, Envelope{Message: msg})
}

// WriteRetryAfter writes a rejection that carries both the Retry-After header and the
// retryAfter body field, in whole seconds.
func WriteRetryAfter(w http.ResponseWriter, status int, message string, retryAfter int) {
	if retryAfter < 0 {
		retryAfter = 0
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteJSON(w, status, Envelope{Message: message, RetryAfter: &retryAfter})
}

// CeilSeconds rounds a positive duration up to whole seconds; non-positive durations yield 0.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeCodeMismatch, dErrors.CodeTokenExpired:
		return http.StatusBadRequest
	case dErrors.CodeForbidden, dErrors.CodeTokenMissing, dErrors.CodeTokenInvalid:
		return http.StatusForbidden
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeLocked:
		return http.StatusLocked
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func defaultMessage(code dErrors.Code) string {
	switch code {
	case dErrors.CodeRateLimited:
		return "Too many requests, please slow down"
	case dErrors.CodeLocked:
		return "Account temporarily locked"
	case dErrors.CodeTokenMissing:
		return "Token missing"
	case dErrors.CodeTokenInvalid:
		return "Invalid token"
	case dErrors.CodeTokenExpired:
		return "Token has expired"
	case dErrors.CodeCodeMismatch:
		return "Invalid code"
	case dErrors.CodeUnavailable:
		return "Service temporarily unavailable"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return "Invalid request"
	case dErrors.CodeForbidden:
		return "Forbidden"
	case dErrors.CodeUnauthorized:
		return "Unauthorized"
	case dErrors.CodeNotFound:
		return "Not found"
	case dErrors.CodeConflict:
		return "Conflict"
	default:
		return genericInternalMessage
	}
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	estateAuth "github.com/MrEthical07/estateAuth"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Permission string `json:"permission,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps err to a status and body. Token failures collapse into
// one UNAUTHENTICATED body so callers cannot tell them apart.
func WriteError(w http.ResponseWriter, err error) {
	status, body := ErrorResponse(err)
	WriteJSON(w, status, body)
}

// ErrorResponse is the status and body [WriteError] would write.
func ErrorResponse(err error) (int, ErrorBody) {
	code := estateAuth.CodeOf(err)
	if code.IsUnauthenticated() {
		return http.StatusUnauthorized, ErrorBody{
			Code:    string(estateAuth.CodeUnauthenticated),
			Message: estateAuth.ErrUnauthenticated.Message,
		}
	}

	switch code {
	case estateAuth.CodeInvalidCredentials:
		return http.StatusUnauthorized, ErrorBody{Code: string(code), Message: "invalid email or password"}
	case estateAuth.CodePermissionDenied:
		body := ErrorBody{Code: string(code), Message: "permission denied"}
		var e *estateAuth.Error
		if errors.As(err, &e) && e.Permission != "" {
			body.Permission = e.Permission
			body.Message = e.Message
		}
		return http.StatusForbidden, body
	case estateAuth.CodeLoginRateLimited:
		return http.StatusTooManyRequests, ErrorBody{Code: string(code), Message: "too many login attempts"}
	case estateAuth.CodeSessionNotFound:
		return http.StatusNotFound, ErrorBody{Code: string(code), Message: "session not found"}
	case estateAuth.CodeResetTokenInvalidOrExpired, estateAuth.CodeResetTokenAlreadyUsed:
		return http.StatusBadRequest, ErrorBody{Code: "INVALID_OR_EXPIRED_TOKEN", Message: "reset token is invalid or expired"}
	case estateAuth.CodePasswordPolicy:
		return http.StatusBadRequest, ErrorBody{Code: string(code), Message: "password does not meet policy"}
	case estateAuth.CodeStoreUnavailable, estateAuth.CodeEngineNotReady:
		return http.StatusServiceUnavailable, ErrorBody{Code: string(code), Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal error"}
	}
}

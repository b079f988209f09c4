package estateAuth

import (
	"errors"
	"fmt"
)

// Code is the stable, machine-readable identifier of an engine failure.
type Code string

const (
	CodeTokenMalformed             Code = "TOKEN_MALFORMED"
	CodeTokenExpired               Code = "TOKEN_EXPIRED"
	CodeTokenSignatureInvalid      Code = "TOKEN_SIGNATURE_INVALID"
	CodeTokenRevoked               Code = "TOKEN_REVOKED"
	CodeTokenWrongType             Code = "TOKEN_WRONG_TYPE"
	CodeResetTokenInvalidOrExpired Code = "RESET_TOKEN_INVALID_OR_EXPIRED"
	CodeResetTokenAlreadyUsed      Code = "RESET_TOKEN_ALREADY_USED"
	CodePermissionDenied           Code = "PERMISSION_DENIED"
	CodeInvalidCredentials         Code = "INVALID_CREDENTIALS"
	CodeLoginRateLimited           Code = "LOGIN_RATE_LIMITED"
	CodeSessionNotFound            Code = "SESSION_NOT_FOUND"
	CodePasswordPolicy             Code = "PASSWORD_POLICY"
	CodeStoreUnavailable           Code = "STORE_UNAVAILABLE"
	CodeEngineNotReady             Code = "ENGINE_NOT_READY"
	CodeUnauthenticated            Code = "UNAUTHENTICATED"
	codeInternal                   Code = "INTERNAL"
)

// Error is the typed failure returned by [Engine] methods. Compare with
// errors.Is against the package sentinels; two *Error values match when
// their codes match.
type Error struct {
	Code    Code
	Message string
	// Permission names the missing permission for CodePermissionDenied.
	Permission string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// Is matches on code, and every token code also matches [ErrUnauthenticated].
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeUnauthenticated && e.Code.IsUnauthenticated()
}

// IsUnauthenticated reports whether c rejects the caller's credential.
func (c Code) IsUnauthenticated() bool {
	switch c {
	case CodeTokenMalformed, CodeTokenExpired, CodeTokenSignatureInvalid,
		CodeTokenRevoked, CodeTokenWrongType, CodeUnauthenticated:
		return true
	default:
		return false
	}
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *Error, cause error) *Error {
	out := *sentinel
	out.cause = cause
	return &out
}

var (
	ErrTokenMalformed             = newError(CodeTokenMalformed, "token malformed")
	ErrTokenExpired               = newError(CodeTokenExpired, "token expired")
	ErrTokenSignatureInvalid      = newError(CodeTokenSignatureInvalid, "token signature invalid")
	ErrTokenRevoked               = newError(CodeTokenRevoked, "token revoked")
	ErrTokenWrongType             = newError(CodeTokenWrongType, "token of wrong type")
	ErrResetTokenInvalidOrExpired = newError(CodeResetTokenInvalidOrExpired, "reset token invalid or expired")
	ErrResetTokenAlreadyUsed      = newError(CodeResetTokenAlreadyUsed, "reset token already used")
	ErrPermissionDenied           = newError(CodePermissionDenied, "permission denied")
	ErrInvalidCredentials         = newError(CodeInvalidCredentials, "invalid credentials")
	ErrLoginRateLimited           = newError(CodeLoginRateLimited, "login rate limited")
	ErrSessionNotFound            = newError(CodeSessionNotFound, "session not found")
	ErrPasswordPolicy             = newError(CodePasswordPolicy, "password policy violation")
	ErrStoreUnavailable           = newError(CodeStoreUnavailable, "store unavailable")
	ErrEngineNotReady             = newError(CodeEngineNotReady, "engine not initialized")

	// ErrUnauthenticated matches every token failure under errors.Is.
	ErrUnauthenticated = newError(CodeUnauthenticated, "invalid or expired session")
)

// CodeOf extracts the [Code] of err, or "" when err is nil. Errors that did
// not originate from the engine report an internal code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return codeInternal
}

// permissionDenied names perm in the returned error.
func permissionDenied(perm string) *Error {
	out := *ErrPermissionDenied
	out.Permission = perm
	out.Message = "permission denied: " + perm
	return &out
}

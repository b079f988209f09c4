package estateAuth

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventLogout               = "logout"
	auditEventSessionRevoked       = "session_revoked"
	auditEventOtherSessionsRevoked = "other_sessions_revoked"
	auditEventForceLogout          = "force_logout"
	auditEventAccessDenied         = "access_denied"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordResetReplay  = "password_reset_replay"
)

// AuditErrorCode is the value carried in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrPrincipalInactive  AuditErrorCode = "principal_inactive"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrResetTokenInvalid  AuditErrorCode = "reset_token_invalid"
	auditErrStoreUnavailable   AuditErrorCode = "store_unavailable"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, principalID, sessionID string, success bool, code AuditErrorCode, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Principal: principalID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     string(code),
		Metadata:  metadata,
	}
	// The caller's cancellation must not discard the audit record.
	e.audit.Emit(context.WithoutCancel(ctx), event)
}

// auditCodeFor maps an engine error code onto the audit vocabulary.
func auditCodeFor(err error) AuditErrorCode {
	switch CodeOf(err) {
	case "":
		return ""
	case CodeInvalidCredentials:
		return auditErrInvalidCredentials
	case CodeLoginRateLimited:
		return auditErrRateLimited
	case CodeTokenRevoked:
		return auditErrTokenRevoked
	case CodeTokenMalformed, CodeTokenExpired, CodeTokenSignatureInvalid, CodeTokenWrongType:
		return auditErrInvalidToken
	case CodeSessionNotFound:
		return auditErrSessionNotFound
	case CodePermissionDenied:
		return auditErrPermissionDenied
	case CodePasswordPolicy:
		return auditErrPasswordPolicy
	case CodeResetTokenInvalidOrExpired, CodeResetTokenAlreadyUsed:
		return auditErrResetTokenInvalid
	default:
		return auditErrStoreUnavailable
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

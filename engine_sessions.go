package estateAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/revocation"
	"github.com/MrEthical07/estateAuth/session"
)

// ListSessions returns the caller's live sessions, most recently active
// first, with the caller's own session flagged as current.
func (e *Engine) ListSessions(ctx context.Context, auth *AuthResult) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if auth == nil {
		return nil, ErrUnauthenticated
	}
	if !e.evaluator.HasPermission(auth.Role, permission.SessionReadOwn) {
		e.metrics.Inc(MetricPermissionDenied)
		return nil, permissionDenied(permission.SessionReadOwn)
	}

	sessions, err := e.sessions.List(ctx, auth.PrincipalID)
	if err != nil {
		return nil, wrap(ErrStoreUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionInfo(s, auth.SessionID))
	}
	return out, nil
}

// RevokeSession ends one session. The owner needs session:revoke:own;
// anyone else needs session:revoke:any. Unknown ids return
// [ErrSessionNotFound], and so do other principals' sessions when the caller
// lacks session:revoke:any, so ids cannot be enumerated.
func (e *Engine) RevokeSession(ctx context.Context, auth *AuthResult, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if auth == nil {
		return ErrUnauthenticated
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return wrap(ErrStoreUnavailable, err)
	}

	required := permission.SessionRevokeAny
	if sess.PrincipalID == auth.PrincipalID {
		required = permission.SessionRevokeOwn
	}
	if !e.evaluator.HasAny(auth.Role, required, permission.SessionRevokeAny) {
		e.metrics.Inc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventAccessDenied, auth.PrincipalID, auth.SessionID, false, auditErrPermissionDenied, map[string]string{
			"permission": required,
			"target":     sess.ID,
		})
		if required == permission.SessionRevokeAny {
			return ErrSessionNotFound
		}
		return permissionDenied(required)
	}

	if err := e.retireSession(ctx, sess, nil, revocation.ReasonSessionRevoked); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventSessionRevoked, sess.PrincipalID, sess.ID, true, "", map[string]string{"actor": auth.PrincipalID})
	return nil
}

// RevokeOtherSessions ends every session of the caller except the current
// one and returns how many were ended.
func (e *Engine) RevokeOtherSessions(ctx context.Context, auth *AuthResult) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if auth == nil {
		return 0, ErrUnauthenticated
	}
	if !e.evaluator.HasPermission(auth.Role, permission.SessionRevokeOwn) {
		e.metrics.Inc(MetricPermissionDenied)
		return 0, permissionDenied(permission.SessionRevokeOwn)
	}

	victims, err := e.sessions.DeleteAllExcept(ctx, auth.PrincipalID, auth.SessionID)
	if err != nil {
		return 0, wrap(ErrStoreUnavailable, err)
	}
	n, err := e.revocations.RevokeTargets(ctx, session.Targets(victims), revocation.ReasonSessionRevoked)
	if err != nil {
		return 0, wrap(ErrStoreUnavailable, err)
	}
	e.metrics.Add(MetricRevocationWritten, uint64(n))
	e.metrics.Add(MetricSessionRevoked, uint64(len(victims)))

	e.emitAudit(ctx, auditEventOtherSessionsRevoked, auth.PrincipalID, auth.SessionID, true, "", map[string]string{
		"count": strconv.Itoa(len(victims)),
	})
	return len(victims), nil
}

// ForceLogout ends every session of principalID on behalf of an
// administrator holding session:revoke:any.
func (e *Engine) ForceLogout(ctx context.Context, actor *AuthResult, principalID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if actor == nil {
		return 0, ErrUnauthenticated
	}
	if err := e.Authorize(ctx, actor, permission.SessionRevokeAny); err != nil {
		return 0, err
	}

	n, err := e.revokeAllForPrincipal(ctx, principalID, revocation.ReasonForceLogout)
	if err != nil {
		e.emitAudit(ctx, auditEventForceLogout, principalID, "", false, auditErrStoreUnavailable, map[string]string{"actor": actor.PrincipalID})
		return 0, err
	}

	e.metrics.Inc(MetricForceLogout)
	e.emitAudit(ctx, auditEventForceLogout, principalID, "", true, "", map[string]string{
		"actor": actor.PrincipalID,
		"count": strconv.Itoa(n),
	})
	return n, nil
}

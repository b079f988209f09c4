package estateAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/estateAuth/internal"
	internalaudit "github.com/MrEthical07/estateAuth/internal/audit"
	"github.com/MrEthical07/estateAuth/internal/flows"
	"github.com/MrEthical07/estateAuth/internal/rate"
	"github.com/MrEthical07/estateAuth/internal/stores"
	"github.com/MrEthical07/estateAuth/jwt"
	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/revocation"
	"github.com/MrEthical07/estateAuth/session"
)

// Engine is the authentication and session lifecycle service. It is safe
// for concurrent use once returned by [Builder.Build].
type Engine struct {
	config      Config
	tokens      *jwt.Manager
	hasher      *password.Argon2
	evaluator   *permission.Evaluator
	sessions    *session.Store
	revocations *revocation.Registry
	resetStore  *stores.PasswordResetStore
	limiter     *rate.Limiter
	principals  PrincipalStore
	delivery    ResetDelivery
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	clock       func() time.Time

	loginEmailPolicy rate.Policy
	loginIPPolicy    rate.Policy
	resetEmailPolicy rate.Policy
	resetIPPolicy    rate.Policy

	deliveryMu sync.Mutex
	deliveries sync.WaitGroup
	closed     bool
	closeOnce  sync.Once
}

func (e *Engine) initPolicies() {
	sec := e.config.Security
	e.loginEmailPolicy = rate.Policy{
		Prefix: "alf:e",
		Limit:  sec.MaxLoginAttempts,
		Window: sec.LoginCooldownDuration,
	}
	if sec.EnableIPThrottle {
		e.loginIPPolicy = rate.Policy{
			Prefix: "alf:ip",
			Limit:  sec.MaxLoginAttemptsPerIP,
			Window: sec.LoginCooldownDuration,
		}
	}

	pr := e.config.PasswordReset
	e.resetEmailPolicy = rate.Policy{Prefix: "arq:e", Limit: pr.MaxRequests, Window: pr.RequestWindow}
	e.resetIPPolicy = rate.Policy{Prefix: "arq:ip", Limit: pr.MaxRequests, Window: pr.RequestWindow}
}

// Close waits for in-flight reset deliveries and drains the audit
// dispatcher. It is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.deliveryMu.Lock()
		e.closed = true
		e.deliveryMu.Unlock()

		e.deliveries.Wait()
		e.audit.Close()
	})
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Now returns the current time on the engine's clock. Token expiries are
// stamped against it.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// Evaluator returns the role-permission evaluator the engine authorizes with.
func (e *Engine) Evaluator() *permission.Evaluator {
	if e == nil {
		return nil
	}
	return e.evaluator
}

func (e *Engine) warn(component string) func(string, ...any) {
	return e.logger.With("component", component).Warn
}

func (e *Engine) ready() bool {
	return e != nil && e.tokens != nil && e.sessions != nil
}

/*
====================================
LOGIN
====================================
*/

// Login verifies email and password and opens a new session. The client
// IP and User-Agent are read from ctx (see [WithClientIP], [WithUserAgent]).
//
// Unknown emails, inactive principals and wrong passwords all return
// [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	ip := clientIPFromContext(ctx)
	if email == "" || pass == "" {
		e.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	if err := e.checkLoginThrottle(ctx, email, ip); err != nil {
		if errors.Is(err, ErrLoginRateLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, "", "", false, auditErrRateLimited, map[string]string{"email": email})
		}
		return nil, err
	}

	p, err := e.principals.GetPrincipalByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrPrincipalNotFound):
		return nil, e.loginFailed(ctx, email, ip, "")
	case err != nil:
		return nil, wrap(ErrStoreUnavailable, err)
	case !p.Active:
		return nil, e.loginFailed(ctx, email, ip, p.ID)
	}

	ok, err := e.hasher.Verify(pass, p.CredentialHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		e.warn("login")("credential hash unreadable", "principal_id", p.ID, "error", err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, ip, p.ID)
	}

	if err := e.limiter.Reset(ctx, e.loginEmailPolicy, email); err != nil {
		e.warn("login")("login throttle reset failed", "principal_id", p.ID, "error", err)
	}
	e.maybeUpgradeHash(ctx, p, pass)

	res, err := e.openSession(ctx, p, ip)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, p.ID, "", false, auditCodeFor(err), nil)
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Inc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, p.ID, res.SessionID, true, "", map[string]string{"role": string(p.Role)})
	return res, nil
}

func (e *Engine) checkLoginThrottle(ctx context.Context, email, ip string) error {
	for _, c := range []struct {
		policy  rate.Policy
		subject string
	}{
		{e.loginEmailPolicy, email},
		{e.loginIPPolicy, ip},
	} {
		if err := e.limiter.Check(ctx, c.policy, c.subject); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return wrap(ErrLoginRateLimited, err)
			}
			return wrap(ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, principalID string) error {
	warn := e.warn("login")
	if err := e.limiter.Hit(ctx, e.loginEmailPolicy, email); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		warn("login throttle update failed", "error", err)
	}
	if err := e.limiter.Hit(ctx, e.loginIPPolicy, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		warn("login throttle update failed", "error", err)
	}

	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, principalID, "", false, auditErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

func (e *Engine) maybeUpgradeHash(ctx context.Context, p Principal, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(p.CredentialHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		// Legacy credentials may predate the current policy.
		return
	}
	if err := e.principals.UpdateCredentialHash(ctx, p.ID, hash); err != nil {
		e.warn("login")("credential upgrade failed", "principal_id", p.ID, "error", err)
	}
}

func (e *Engine) openSession(ctx context.Context, p Principal, ip string) (*LoginResult, error) {
	sub := jwt.Subject{
		PrincipalID: p.ID,
		Role:        string(p.Role),
		SessionID:   session.NewID(),
	}

	refresh, refreshExp, err := e.tokens.IssueRefresh(sub)
	if err != nil {
		return nil, wrap(ErrEngineNotReady, err)
	}
	access, accessExp, err := e.tokens.IssueAccess(sub)
	if err != nil {
		return nil, wrap(ErrEngineNotReady, err)
	}

	sess, err := e.sessions.Create(ctx, session.NewSession{
		ID:                 sub.SessionID,
		PrincipalID:        p.ID,
		Role:               sub.Role,
		RefreshFingerprint: internal.Fingerprint(refresh),
		RefreshExpiresAt:   refreshExp,
		UserAgent:          userAgentFromContext(ctx),
		Origin:             ip,
	})
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			return nil, wrap(ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	p.CredentialHash = ""
	return &LoginResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		SessionID:        sess.ID,
		Principal:        p,
	}, nil
}

/*
====================================
AUTHENTICATE / AUTHORIZE
====================================
*/

// Authenticate verifies an access token against the revocation registry
// and the session registry and records activity on the session.
//
// Every failure matches [ErrUnauthenticated] except backend outages, which
// return [ErrStoreUnavailable].
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()

	res := flows.RunAuthenticate(ctx, accessToken, flows.AuthenticateDeps{
		Tokens:      e.tokens,
		Revocations: e.revocations,
		Sessions:    e.sessions,
		Warn:        e.warn("session"),
	})

	var err error
	switch res.Failure {
	case flows.AuthenticateFailureNone:
	case flows.AuthenticateFailureDecode:
		err = tokenError(res.Err)
	case flows.AuthenticateFailureRevoked, flows.AuthenticateFailureSessionMissing:
		err = ErrTokenRevoked
	default:
		err = wrap(ErrStoreUnavailable, res.Err)
	}
	if err != nil {
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, err
	}

	e.metrics.Inc(MetricAuthenticateSuccess)
	return &AuthResult{
		PrincipalID:    res.Claims.PrincipalID,
		Role:           permission.Role(res.Claims.Role),
		SessionID:      res.Session.ID,
		TokenExpiresAt: res.Claims.ExpiresAt,
		AccessToken:    accessToken,
	}, nil
}

// Authorize returns nil when the caller's role grants perm, or an error
// matching [ErrPermissionDenied] that names perm.
func (e *Engine) Authorize(ctx context.Context, auth *AuthResult, perm string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if auth == nil {
		return ErrUnauthenticated
	}
	if e.evaluator.HasPermission(auth.Role, perm) {
		return nil
	}

	e.metrics.Inc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventAccessDenied, auth.PrincipalID, auth.SessionID, false, auditErrPermissionDenied, map[string]string{
		"permission": perm,
		"role":       string(auth.Role),
	})
	return permissionDenied(perm)
}

// RequirePermission authenticates accessToken and authorizes perm.
func (e *Engine) RequirePermission(ctx context.Context, accessToken, perm string) (*AuthResult, error) {
	auth, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if err := e.Authorize(ctx, auth, perm); err != nil {
		return nil, err
	}
	return auth, nil
}

/*
====================================
REFRESH / LOGOUT
====================================
*/

// Refresh exchanges a refresh token for a new access token bound to the
// same session. The refresh token is not rotated. A principal that has
// been deactivated or removed loses the session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Tokens:        e.tokens,
		Revocations:   e.revocations,
		Sessions:      e.sessions,
		LoadPrincipal: e.principalState,
		RevokeInactive: func(ctx context.Context, sess *session.Session) error {
			return e.retireSession(ctx, sess, nil, revocation.ReasonPrincipalGone)
		},
		Warn: e.warn("refresh"),
	})

	var (
		err  error
		code AuditErrorCode
	)
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureDecode:
		err, code = tokenError(res.Err), auditErrInvalidToken
	case flows.RefreshFailureRevoked, flows.RefreshFailureSessionMissing, flows.RefreshFailureFingerprintMismatch:
		err, code = ErrTokenRevoked, auditErrTokenRevoked
	case flows.RefreshFailurePrincipalInactive:
		err, code = ErrTokenRevoked, auditErrPrincipalInactive
	case flows.RefreshFailureIssueAccess:
		err, code = wrap(ErrEngineNotReady, res.Err), auditErrStoreUnavailable
	default:
		err, code = wrap(ErrStoreUnavailable, res.Err), auditErrStoreUnavailable
	}

	var principalID, sessionID string
	if res.Claims != nil {
		principalID, sessionID = res.Claims.PrincipalID, res.Claims.SessionID
	}
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, principalID, sessionID, false, code, nil)
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, principalID, sessionID, true, "", nil)
	return &RefreshResult{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.ExpiresAt,
		SessionID:       res.Session.ID,
	}, nil
}

func (e *Engine) principalState(ctx context.Context, principalID string) (flows.PrincipalState, error) {
	p, err := e.principals.GetPrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return flows.PrincipalState{}, nil
		}
		return flows.PrincipalState{}, err
	}
	return flows.PrincipalState{Found: true, Active: p.Active, Role: string(p.Role)}, nil
}

// Logout ends the caller's session: the session's refresh token and the
// presented access token are revoked and the session record is deleted.
func (e *Engine) Logout(ctx context.Context, auth *AuthResult) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if auth == nil {
		return ErrUnauthenticated
	}

	sess, err := e.sessions.Get(ctx, auth.SessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return wrap(ErrStoreUnavailable, err)
	}

	var extra []revocation.Target
	if auth.AccessToken != "" {
		extra = append(extra, revocation.Target{
			Fingerprint: internal.Fingerprint(auth.AccessToken),
			ExpiresAt:   auth.TokenExpiresAt,
		})
	}
	if err := e.retireSession(ctx, sess, extra, revocation.ReasonLogout); err != nil {
		e.emitAudit(ctx, auditEventLogout, auth.PrincipalID, auth.SessionID, false, auditErrStoreUnavailable, nil)
		return err
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, auth.PrincipalID, auth.SessionID, true, "", nil)
	return nil
}

// retireSession revokes the refresh credential of sess plus extra and
// deletes sess. sess may be nil when only extra needs revoking.
func (e *Engine) retireSession(ctx context.Context, sess *session.Session, extra []revocation.Target, reason revocation.Reason) error {
	targets := extra
	if sess != nil {
		targets = append(session.Targets([]*session.Session{sess}), extra...)
	}

	n, err := e.revocations.RevokeTargets(ctx, targets, reason)
	if err != nil {
		return wrap(ErrStoreUnavailable, err)
	}
	e.metrics.Add(MetricRevocationWritten, uint64(n))

	if sess == nil {
		return nil
	}
	if _, err := e.sessions.Delete(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return wrap(ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricSessionRevoked)
	return nil
}

// revokeAllForPrincipal revokes every refresh credential of principalID and
// deletes its sessions. It returns the number of sessions ended.
func (e *Engine) revokeAllForPrincipal(ctx context.Context, principalID string, reason revocation.Reason) (int, error) {
	n, err := e.revocations.RevokeAllForPrincipal(ctx, principalID, reason)
	if err != nil {
		return 0, wrap(ErrStoreUnavailable, err)
	}
	e.metrics.Add(MetricRevocationWritten, uint64(n))

	// Sessions opened after the revocation pass are caught here; their
	// tokens die with the record.
	victims, err := e.sessions.DeleteAllForPrincipal(ctx, principalID)
	if err != nil {
		return 0, wrap(ErrStoreUnavailable, err)
	}
	e.metrics.Add(MetricSessionRevoked, uint64(len(victims)))
	return len(victims), nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return wrap(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return wrap(ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrWrongKind):
		return wrap(ErrTokenWrongType, err)
	case errors.Is(err, jwt.ErrMalformed), errors.Is(err, jwt.ErrUnknownKind):
		return wrap(ErrTokenMalformed, err)
	default:
		return wrap(ErrTokenMalformed, fmt.Errorf("unclassified token error: %w", err))
	}
}

package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/estateAuth/internal"
	"github.com/MrEthical07/estateAuth/jwt"
	"github.com/MrEthical07/estateAuth/session"
)

// AuthenticateFailureKind classifies authentication failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureDecode
	AuthenticateFailureRevoked
	AuthenticateFailureSessionMissing
	AuthenticateFailureBackend
)

// AuthenticateResult carries the verified claims and session, or failure metadata.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	Claims  *jwt.Claims
	Session *session.Session
}

// AuthenticateDeps captures authenticate flow dependencies.
type AuthenticateDeps struct {
	Tokens      TokenDecoder
	Revocations RevocationChecker
	Sessions    SessionReader
	Warn        func(string, ...any)
}

// RunAuthenticate verifies an access token and the session it belongs to.
//
// Order: signature and expiry, access revocation, session lookup, refresh
// revocation, activity touch. A touch failure is logged and ignored.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) AuthenticateResult {
	warn := warnOrDiscard(deps.Warn)

	claims, err := deps.Tokens.DecodeAs(token, jwt.KindAccess)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureDecode, Err: err}
	}

	revoked, err := deps.Revocations.IsFingerprintRevoked(ctx, internal.Fingerprint(token))
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureBackend, Err: err, Claims: claims}
	}
	if revoked {
		return AuthenticateResult{Failure: AuthenticateFailureRevoked, Claims: claims}
	}

	sess, err := deps.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return AuthenticateResult{Failure: AuthenticateFailureSessionMissing, Err: err, Claims: claims}
		}
		return AuthenticateResult{Failure: AuthenticateFailureBackend, Err: err, Claims: claims}
	}
	if sess.PrincipalID != claims.PrincipalID {
		return AuthenticateResult{Failure: AuthenticateFailureSessionMissing, Claims: claims}
	}

	revoked, err = deps.Revocations.IsFingerprintRevoked(ctx, sess.RefreshFingerprint)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureBackend, Err: err, Claims: claims}
	}
	if revoked {
		return AuthenticateResult{Failure: AuthenticateFailureRevoked, Claims: claims, Session: sess}
	}

	if err := deps.Sessions.Touch(ctx, sess.ID); err != nil {
		warn("session touch failed", "session_id", sess.ID, "error", err)
	}

	return AuthenticateResult{Claims: claims, Session: sess}
}

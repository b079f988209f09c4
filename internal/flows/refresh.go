package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/estateAuth/internal"
	"github.com/MrEthical07/estateAuth/jwt"
	"github.com/MrEthical07/estateAuth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRevoked
	RefreshFailureSessionMissing
	RefreshFailureFingerprintMismatch
	RefreshFailurePrincipalInactive
	RefreshFailureIssueAccess
	RefreshFailureBackend
)

// RefreshTokens decodes refresh tokens and issues access tokens.
type RefreshTokens interface {
	TokenDecoder
	AccessIssuer
}

// PrincipalState is the directory view of a principal needed by refresh.
type PrincipalState struct {
	Found  bool
	Active bool
	Role   string
}

// RefreshResult carries the issued access token or failure metadata.
type RefreshResult struct {
	Failure     RefreshFailureKind
	Err         error
	Claims      *jwt.Claims
	Session     *session.Session
	AccessToken string
	ExpiresAt   time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Tokens      RefreshTokens
	Revocations RevocationChecker
	Sessions    SessionReader

	LoadPrincipal func(ctx context.Context, principalID string) (PrincipalState, error)
	// RevokeInactive retires the session of a principal found inactive.
	RevokeInactive func(ctx context.Context, sess *session.Session) error

	Warn func(string, ...any)
}

// RunRefresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	warn := warnOrDiscard(deps.Warn)

	claims, err := deps.Tokens.DecodeAs(refreshToken, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	fp := internal.Fingerprint(refreshToken)
	revoked, err := deps.Revocations.IsFingerprintRevoked(ctx, fp)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, Claims: claims}
	}
	if revoked {
		return RefreshResult{Failure: RefreshFailureRevoked, Claims: claims}
	}

	sess, err := deps.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureSessionMissing, Err: err, Claims: claims}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, Claims: claims}
	}
	if sess.RefreshFingerprint != fp || sess.PrincipalID != claims.PrincipalID {
		return RefreshResult{Failure: RefreshFailureFingerprintMismatch, Claims: claims, Session: sess}
	}

	role := sess.Role
	if deps.LoadPrincipal != nil {
		state, err := deps.LoadPrincipal(ctx, claims.PrincipalID)
		if err != nil {
			return RefreshResult{Failure: RefreshFailureBackend, Err: err, Claims: claims, Session: sess}
		}
		if !state.Found || !state.Active {
			if deps.RevokeInactive != nil {
				if err := deps.RevokeInactive(ctx, sess); err != nil {
					warn("inactive principal session cleanup failed", "session_id", sess.ID, "error", err)
				}
			}
			return RefreshResult{Failure: RefreshFailurePrincipalInactive, Claims: claims, Session: sess}
		}
		if state.Role != "" {
			role = state.Role
		}
	}

	access, exp, err := deps.Tokens.IssueAccess(jwt.Subject{
		PrincipalID: claims.PrincipalID,
		Role:        role,
		SessionID:   sess.ID,
	})
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, Claims: claims, Session: sess}
	}

	if err := deps.Sessions.Touch(ctx, sess.ID); err != nil {
		warn("session touch failed", "session_id", sess.ID, "error", err)
	}

	return RefreshResult{Claims: claims, Session: sess, AccessToken: access, ExpiresAt: exp}
}

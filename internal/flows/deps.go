package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/estateAuth/jwt"
	"github.com/MrEthical07/estateAuth/session"
)

// TokenDecoder verifies a bearer token of the expected kind.
type TokenDecoder interface {
	DecodeAs(token string, want jwt.Kind) (*jwt.Claims, error)
}

// AccessIssuer mints access tokens.
type AccessIssuer interface {
	IssueAccess(sub jwt.Subject) (string, time.Time, error)
}

// RevocationChecker answers revocation lookups by fingerprint.
type RevocationChecker interface {
	IsFingerprintRevoked(ctx context.Context, fp string) (bool, error)
}

// SessionReader loads and touches sessions.
type SessionReader interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Touch(ctx context.Context, sessionID string) error
}

func warnOrDiscard(fn func(string, ...any)) func(string, ...any) {
	if fn != nil {
		return fn
	}
	return func(string, ...any) {}
}

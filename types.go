package estateAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/estateAuth/permission"
)

// Principal is an authenticated party as held by the principal directory.
// This module only ever replaces CredentialHash.
type Principal struct {
	ID             string
	Email          string
	CredentialHash string
	Role           permission.Role
	Active         bool
	MFAEnabled     bool
}

// ErrPrincipalNotFound is returned by a [PrincipalStore] for unknown ids or
// emails. Implementations may wrap it.
var ErrPrincipalNotFound = errors.New("principal not found")

// PrincipalStore is the directory the engine reads principals from.
type PrincipalStore interface {
	GetPrincipalByEmail(ctx context.Context, email string) (Principal, error)
	GetPrincipalByID(ctx context.Context, id string) (Principal, error)
	UpdateCredentialHash(ctx context.Context, id, hash string) error
}

// ResetDelivery sends a raw password reset token to its principal. The
// engine never sees whether the message arrived.
type ResetDelivery interface {
	SendPasswordReset(ctx context.Context, p Principal, token string, expiresAt time.Time) error
}

// ResetDeliveryFunc adapts a function to [ResetDelivery].
type ResetDeliveryFunc func(ctx context.Context, p Principal, token string, expiresAt time.Time) error

// SendPasswordReset calls f.
func (f ResetDeliveryFunc) SendPasswordReset(ctx context.Context, p Principal, token string, expiresAt time.Time) error {
	return f(ctx, p, token, expiresAt)
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	Principal        Principal
}

// RefreshResult is returned by [Engine.Refresh].
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	SessionID       string
}

// AuthResult describes the caller of an authenticated request.
type AuthResult struct {
	PrincipalID string
	Role        permission.Role
	SessionID   string
	// TokenExpiresAt is the natural expiry of the presented access token.
	TokenExpiresAt time.Time
	// AccessToken is retained so logout can revoke it.
	AccessToken string
}

// SessionInfo is the client-facing view of one session.
type SessionInfo struct {
	ID           string    `json:"id"`
	Browser      string    `json:"browser"`
	DeviceType   string    `json:"deviceType"`
	Origin       string    `json:"origin"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsCurrent    bool      `json:"isCurrent"`
}

// ResetTokenStatus is returned by [Engine.ValidateResetToken].
type ResetTokenStatus struct {
	Valid            bool `json:"valid"`
	RemainingMinutes int  `json:"remainingMinutes"`
}

// HealthStatus reports backend reachability.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

package session

import "time"

// Session is one logged-in device of a principal. It is created at login and
// lives until logout, administrative revocation, or refresh-token expiry.
type Session struct {
	ID          string
	PrincipalID string
	Role        string

	// RefreshFingerprint is the fingerprint of the refresh token issued
	// alongside the session. The raw token is never stored.
	RefreshFingerprint string
	RefreshExpiresAt   time.Time

	Browser    string
	DeviceType string
	UserAgent  string
	Origin     string

	CreatedAt    time.Time
	LastActivity time.Time
}

// IsCurrent reports whether s is the session identified by currentID.
func (s *Session) IsCurrent(currentID string) bool {
	return s != nil && currentID != "" && s.ID == currentID
}

// NewSession carries the inputs to [Store.Create].
type NewSession struct {
	// ID is optional; a uuid is generated when empty. Callers that embed the
	// session id into tokens before creation set it explicitly.
	ID                 string
	PrincipalID        string
	Role               string
	RefreshFingerprint string
	RefreshExpiresAt   time.Time
	UserAgent          string
	Origin             string
}

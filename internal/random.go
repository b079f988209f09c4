package internal

import (
	"crypto/rand"
	"encoding/base64"
)

// ResetSecretSize is the number of random bytes behind a password reset token.
const ResetSecretSize = 32

// NewResetToken returns a fresh base64url encoded reset token.
func NewResetToken() (string, error) {
	var secret [ResetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// IsResetTokenShape reports whether token could have come from [NewResetToken].
// It rejects obviously foreign input before any store lookup.
func IsResetTokenShape(token string) bool {
	if token == "" {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return len(raw) == ResetSecretSize
}

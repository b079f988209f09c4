package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintSize is the length of a fingerprint string in hex characters.
const FingerprintSize = sha256.Size * 2

// Fingerprint returns the lowercase hex SHA-256 digest of raw. It is the only
// representation of a bearer secret that is ever persisted.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsFingerprint reports whether v has the shape produced by [Fingerprint].
func IsFingerprint(v string) bool {
	if len(v) != FingerprintSize {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Package jwt issues and verifies the two bearer credentials used by estateAuth:
// short-lived access tokens and long-lived refresh tokens.
//
// Tokens embed the principal id (sub), role, session id (sid), kind (typ),
// a random token id (jti), and issued-at/expiry timestamps. Verification pins
// the signing algorithm, and enforces issuer, audience, and expiry against an
// injectable clock.
//
// # Architecture boundaries
//
// The package is pure: it performs no I/O and holds no mutable state.
// Revocation and session checks are layered on top by the engine.
//
// # What this package must NOT do
//
//   - Persist or log raw tokens.
//   - Accept an algorithm other than the configured one.
//   - Treat a refresh token as an access token, or the reverse.
package jwt

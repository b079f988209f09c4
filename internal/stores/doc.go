// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive authentication flows. Today that is the password reset
// record.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a TTL.
// Mutation operations (Consume, Release) use WATCH/MULTI optimistic
// transactions with automatic retry on contention. Records are keyed by the
// fingerprint of the secret, never the secret itself.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// challenge records. It does NOT generate tokens, enforce rate limits,
// or make authentication decisions. Those responsibilities belong to the
// flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import estateAuth or any sibling internal package.
//   - Log or expose plaintext secrets.
package stores

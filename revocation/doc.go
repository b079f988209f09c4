// Package revocation implements the token deny list consulted on every
// authenticated request and on every refresh.
//
// Entries are keyed by token fingerprint (never the raw token) and carry a
// Redis TTL equal to the remaining natural lifetime of the token, so the
// list purges itself once a revoked token could no longer verify anyway.
//
// # Architecture boundaries
//
// The registry depends only on Redis and on a [FingerprintSource] for bulk
// revocation. It does not know about sessions beyond that interface.
//
// # What this package must NOT do
//
//   - Cache "not revoked" answers in process.
//   - Store raw tokens.
//   - Write entries for tokens that have already expired.
package revocation

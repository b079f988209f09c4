// Package estateAuth provides the authentication and session lifecycle of a
// property-management platform: short-lived ed25519 access tokens, long-lived
// refresh tokens bound to Redis-backed per-device sessions, a revocation
// registry that outlives nothing it revokes, a single-use password reset flow,
// and a static role-to-permission model consulted on every protected request.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// estateAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the typed [Error] taxonomy and value types (SessionInfo, MetricsSnapshot,
// etc.). Flow orchestration, reset records, rate limiting and audit dispatch
// live under internal/ and are never exported. Token, session, revocation,
// password and permission primitives are importable sub-packages.
//
// # What this package must NOT do
//
//   - Persist or log a raw token. Only fingerprints reach Redis.
//   - Cache a "not revoked" answer. Every authenticated request reads Redis.
//   - Treat a backend failure as success. Outages surface as ErrStoreUnavailable.
//   - Reveal through RequestPasswordReset whether an email is registered.
//
// # Performance contract
//
// Authenticate costs one signature verification and four Redis round-trips
// (two EXISTS, one GET, one WATCH/SET touch, the last skipped within
// SessionConfig.TouchInterval). Permission checks are a mask test.
package estateAuth

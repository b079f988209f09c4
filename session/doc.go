// Package session provides Redis-backed per-device session tracking and a
// compact binary session encoding.
//
// # Storage layout
//
// Each session is one key (as:<id>) holding a versioned binary record, with
// a TTL equal to the remaining lifetime of the refresh token issued with it.
// A per-principal set (au:<principal>) indexes session ids; entries whose
// record has expired are pruned when the set is read.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations), the [Session] model and
// user-agent classification. It does NOT interpret JWT tokens, evaluate
// permissions, or enforce authentication policy. Those responsibilities
// belong to the Engine.
//
// # What this package must NOT do
//
//   - Import estateAuth, jwt, or permission (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store raw tokens in [Session] fields.
package session

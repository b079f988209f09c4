// Package rate provides Redis-backed fixed-window rate limiting for
// security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes
// are chosen by the caller's [Policy]; the engine uses:
//   - alf:e   login failures per email
//   - alf:ip  login failures per IP
//   - arq:e   password reset requests per email
//   - arq:ip  password reset requests per IP
//
// # What this package must NOT do
//
//   - Decide what happens when a budget is exhausted.
//   - Be imported outside the estateAuth module.
package rate

// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow function (RunAuthenticate, RunRefresh, RunRequestPasswordReset,
// and so on) accepts a typed dependency struct and returns a result value
// that classifies failures. The Engine maps those classifications onto its
// public error codes, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, revocation registry,
// session store and reset store. They do NOT own any of these resources.
// Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import estateAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows

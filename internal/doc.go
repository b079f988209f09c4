// Package internal contains helpers that are private to estateAuth: token
// fingerprinting and secure random generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: daemon YAML configuration loading
//   - flows: flow orchestrators behind Engine operations
//   - logging: slog logger construction
//   - principals: principal directory implementations (memory, Postgres)
//   - rate: Redis-backed fixed-window rate limiting
//   - stores: Redis-backed password reset record store
//
// # What this package must NOT do
//
//   - Export types that appear in the public estateAuth API.
//   - Be imported by any package outside the estateAuth module.
package internal

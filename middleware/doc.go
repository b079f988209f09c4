// Package middleware adapts [estateAuth.Engine] to net/http.
//
// # Guards
//
//   - [Authenticate] verifies the bearer access token and stores the caller
//     on the request context.
//   - [RequirePermission] rejects callers whose role lacks a permission.
//   - [ClientContext] records the client IP and User-Agent for the engine.
//   - [IPRateLimiter] is a per-IP token bucket for unauthenticated routes.
//
// Failures are written as JSON {code, message} bodies by [WriteError], the
// single place where engine codes become HTTP statuses.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the Engine).
//   - Access Redis.
//   - Tell a caller why a token was rejected. Every token failure is the
//     same 401 body.
package middleware

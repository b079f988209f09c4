// Package httpapi is the JSON HTTP surface of estate-authd, a chi router
// over [estateAuth.Engine].
//
// Routes:
//
//	POST   /auth/login
//	POST   /auth/refresh
//	POST   /auth/logout                    bearer
//	GET    /auth/sessions                  bearer
//	DELETE /auth/sessions                  bearer, revokes all but the current session
//	DELETE /auth/sessions/{id}             bearer
//	POST   /auth/principals/{id}/revoke    bearer, session:revoke:any
//	POST   /auth/password-reset/request
//	POST   /auth/password-reset/validate
//	POST   /auth/password-reset/complete
//	GET    /healthz
//	GET    /metrics
//
// The refresh token is returned in the login body and also set as an
// HTTP-only refresh_token cookie scoped to /auth.
package httpapi

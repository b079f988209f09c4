package middleware

import (
	"net/http"

	estateAuth "github.com/MrEthical07/estateAuth"
)

// RequirePermission returns middleware that admits only callers whose role
// grants perm. It must run after [Authenticate].
func RequirePermission(engine *estateAuth.Engine, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := estateAuth.AuthResultFromContext(r.Context())
			if !ok || engine == nil {
				WriteError(w, estateAuth.ErrUnauthenticated)
				return
			}
			if err := engine.Authorize(r.Context(), auth, perm); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

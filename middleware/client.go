package middleware

import (
	"net"
	"net/http"
	"strings"

	estateAuth "github.com/MrEthical07/estateAuth"
)

// ClientContext records the client IP and User-Agent on the request
// context. X-Forwarded-For is honoured only when trustForwarded is set.
func ClientContext(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := estateAuth.WithClientIP(r.Context(), ClientIP(r, trustForwarded))
			ctx = estateAuth.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the first X-Forwarded-For entry when trustForwarded is
// set, otherwise the host part of RemoteAddr.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

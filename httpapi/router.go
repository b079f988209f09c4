package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/middleware"
	"github.com/MrEthical07/estateAuth/permission"
)

const maxBodyBytes = 16 << 10

// Options tailors the router for the daemon and for tests.
type Options struct {
	Logger *slog.Logger
	// Metrics serves GET /metrics. Nil leaves the route unmounted.
	Metrics        http.Handler
	TrustForwarded bool
	SecureCookies  bool
	// RateLimitPerSecond and RateLimitBurst bound unauthenticated requests
	// per client IP. Zero PerSecond disables the limiter.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

type server struct {
	engine *estateAuth.Engine
	logger *slog.Logger
	opts   Options
}

// NewRouter mounts every route on a fresh chi router.
func NewRouter(engine *estateAuth.Engine, opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &server{engine: engine, logger: logger, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(middleware.ClientContext(opts.TrustForwarded))
	r.Use(maxBody(maxBodyBytes))

	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.RateLimitPerSecond > 0 {
				r.Use(middleware.NewIPRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst, opts.TrustForwarded).Middleware)
			}
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/password-reset/request", s.handleResetRequest)
			r.Post("/password-reset/validate", s.handleResetValidate)
			r.Post("/password-reset/complete", s.handleResetComplete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(engine))
			r.Post("/logout", s.handleLogout)
			r.Get("/sessions", s.handleListSessions)
			r.Delete("/sessions", s.handleRevokeOtherSessions)
			r.Delete("/sessions/{id}", s.handleRevokeSession)
			r.With(middleware.RequirePermission(engine, permission.SessionRevokeAny)).
				Post("/principals/{id}/revoke", s.handleForceLogout)
		})
	})

	return r
}

func maxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs method, path, status and duration at debug.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

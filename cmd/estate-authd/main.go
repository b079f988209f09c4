// Command estate-authd serves the estateAuth HTTP API.
//
// Without redis.addr it starts an embedded miniredis, and without
// postgres.dsn it serves the seed principals from memory. Both modes are
// for development; production config rejects them.
//
// Run:
//
//	ESTATE_AUTH_JWT_SECRET=... go run ./cmd/estate-authd -config estate-authd.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/httpapi"
	"github.com/MrEthical07/estateAuth/internal/config"
	"github.com/MrEthical07/estateAuth/internal/logging"
	"github.com/MrEthical07/estateAuth/internal/principals"
	promexport "github.com/MrEthical07/estateAuth/metrics/export/prometheus"
	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/permission"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config; empty uses defaults and ESTATE_AUTH_* env")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "estate-authd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, "estate-authd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	// ---------- infrastructure ----------
	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	dir, closeDir, err := openDirectory(ctx, cfg, engineCfg.Password, logger)
	if err != nil {
		return err
	}
	defer closeDir()

	// ---------- engine ----------
	b := estateAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithPrincipalStore(dir).
		WithResetDelivery(logDelivery{logger: logger.With("component", "reset_delivery")}).
		WithLogger(logger)
	if engineCfg.Audit.Enabled {
		b = b.WithAuditSink(estateAuth.NewSlogSink(logger.With("component", "audit_trail")))
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		"signing_algorithm", report.SigningAlgorithm,
		"production", report.ProductionMode,
		"login_throttle", report.LoginThrottleActive,
		"password_reset", report.PasswordResetActive,
	)

	// ---------- http ----------
	router := httpapi.NewRouter(engine, httpapi.Options{
		Logger:             logger,
		Metrics:            promexport.NewPrometheusExporter(engine).Handler(),
		TrustForwarded:     cfg.HTTP.TrustForwarded,
		SecureCookies:      cfg.HTTP.SecureCookies || engineCfg.Security.ProductionMode,
		RateLimitPerSecond: cfg.HTTP.RateLimit.PerSecond,
		RateLimitBurst:     cfg.HTTP.RateLimit.Burst,
	})
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func openRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Addr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("redis.addr not set, using embedded miniredis", "addr", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	closeFn := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, closeFn, nil
}

func openDirectory(ctx context.Context, cfg *config.Config, pc estateAuth.PasswordConfig, logger *slog.Logger) (estateAuth.PrincipalStore, func(), error) {
	if cfg.Postgres.DSN != "" {
		db, err := principals.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := principals.NewPostgres(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      pc.Memory,
		Time:        pc.Time,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	})
	if err != nil {
		return nil, nil, err
	}

	dir := principals.NewMemory()
	for _, s := range cfg.Seed {
		role := permission.Role(s.Role)
		if !role.Known() {
			return nil, nil, fmt.Errorf("seed %s: unknown role %q", s.ID, s.Role)
		}
		hash, err := hasher.Hash(s.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("seed %s: %w", s.ID, err)
		}
		dir.Put(estateAuth.Principal{ID: s.ID, Email: s.Email, CredentialHash: hash, Role: role, Active: true})
	}
	logger.Warn("postgres.dsn not set, using in-memory principal directory", "principals", len(cfg.Seed))
	return dir, func() {}, nil
}

// logDelivery records that a reset was issued. The token itself is not
// logged; wire a mail transport for real delivery.
type logDelivery struct {
	logger *slog.Logger
}

func (d logDelivery) SendPasswordReset(ctx context.Context, p estateAuth.Principal, _ string, expiresAt time.Time) error {
	d.logger.InfoContext(ctx, "password reset issued",
		"principal_id", p.ID,
		"expires_at", expiresAt.UTC().Format(time.RFC3339),
	)
	return nil
}

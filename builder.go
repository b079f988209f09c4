package estateAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/MrEthical07/estateAuth/internal/audit"
	"github.com/MrEthical07/estateAuth/internal/rate"
	"github.com/MrEthical07/estateAuth/internal/stores"
	"github.com/MrEthical07/estateAuth/jwt"
	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/revocation"
	"github.com/MrEthical07/estateAuth/session"
)

// Builder assembles an [Engine]. A Builder is single-use: the second call
// to [Builder.Build] fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	principals PrincipalStore
	delivery   ResetDelivery
	table      permission.Table
	evaluator  *permission.Evaluator

	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client shared by the session store, revocation
// registry, reset store and rate limiter. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPrincipalStore sets the principal directory. Required.
func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

// WithResetDelivery sets the transport for raw reset tokens. Required
// while password reset is enabled.
func (b *Builder) WithResetDelivery(d ResetDelivery) *Builder {
	b.delivery = d
	return b
}

// WithPermissionTable builds the evaluator from t instead of
// [permission.DefaultTable].
func (b *Builder) WithPermissionTable(t permission.Table) *Builder {
	b.table = t
	return b
}

// WithEvaluator injects a prebuilt evaluator. It takes precedence over
// [Builder.WithPermissionTable].
func (b *Builder) WithEvaluator(ev *permission.Evaluator) *Builder {
	b.evaluator = ev
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. Defaults to a
// discarding logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock of every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.principals == nil {
		return nil, errors.New("principal store required")
	}
	if cfg.PasswordReset.Enabled && b.delivery == nil {
		return nil, errors.New("password reset requires a ResetDelivery")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- PERMISSIONS --------
	evaluator := b.evaluator
	if evaluator == nil {
		table := b.table
		if table == nil {
			table = permission.DefaultTable()
		}
		ev, err := permission.NewEvaluator(table)
		if err != nil {
			return nil, err
		}
		evaluator = ev
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewArgon2WithPolicy(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	}, password.Policy{
		MinBytes:     cfg.Password.MinLength,
		MaxBytes:     cfg.Password.MaxLength,
		RequireMixed: cfg.Password.RequireMixed,
	})
	if err != nil {
		return nil, err
	}

	// -------- REDIS STORES --------
	sessions := session.NewStore(
		b.redis,
		session.WithPrefix(cfg.Session.RedisPrefix, cfg.Session.IndexPrefix),
		session.WithClock(now),
		session.WithTouchInterval(cfg.Session.TouchInterval),
	)
	revocations := revocation.NewRegistry(
		b.redis,
		revocation.WithPrefix(cfg.Revocation.RedisPrefix),
		revocation.WithClock(now),
		revocation.WithGrace(cfg.JWT.Leeway),
		revocation.WithSource(sessions),
	)
	resetStore := stores.NewPasswordResetStore(b.redis, cfg.PasswordReset.RedisPrefix, now)

	e := &Engine{
		config:      cfg,
		tokens:      tokens,
		hasher:      hasher,
		evaluator:   evaluator,
		sessions:    sessions,
		revocations: revocations,
		resetStore:  resetStore,
		limiter:     rate.New(b.redis),
		principals:  b.principals,
		delivery:    b.delivery,
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
		clock:       now,
	}
	e.initPolicies()

	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger.With("component", "audit"))

	b.built = true
	return e, nil
}

package estateAuth

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. Build it from
// [DefaultConfig], adjust, and hand it to [Builder.WithConfig]; it is
// treated as immutable afterwards.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Revocation    RevocationConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token codec.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the session registry.
type SessionConfig struct {
	RedisPrefix string
	IndexPrefix string
	// TouchInterval skips activity writes more frequent than this. Zero
	// touches on every authenticated request.
	TouchInterval time.Duration
}

// RevocationConfig configures the revocation registry.
type RevocationConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters (Memory in KiB) and the
// acceptance policy for new passwords.
type PasswordConfig struct {
	Memory       uint32
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	MinLength    int
	MaxLength    int
	RequireMixed bool
	// UpgradeOnLogin re-hashes credentials produced with weaker parameters.
	UpgradeOnLogin bool
}

// PasswordResetConfig configures the reset flow.
type PasswordResetConfig struct {
	Enabled     bool
	ResetTTL    time.Duration
	RedisPrefix string
	// AsyncDelivery hands tokens to ResetDelivery on an engine-owned
	// goroutine. Close waits for in-flight deliveries.
	AsyncDelivery   bool
	DeliveryTimeout time.Duration
	// MaxRequests bounds reset requests per email and per client IP within
	// RequestWindow. Zero disables the throttle.
	MaxRequests   int
	RequestWindow time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds login throttling and production guards.
type SecurityConfig struct {
	ProductionMode        bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	MaxLoginAttemptsPerIP int
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when none is supplied.
// Signing keys are empty and must be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "estate-auth",
		},
		Session: SessionConfig{
			RedisPrefix: "as",
			IndexPrefix: "au",
		},
		Revocation: RevocationConfig{
			RedisPrefix: "arv",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			MaxLength:      1024,
			RequireMixed:   true,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:         true,
			ResetTTL:        30 * time.Minute,
			RedisPrefix:     "apr",
			AsyncDelivery:   false,
			DeliveryTimeout: 10 * time.Second,
			MaxRequests:     5,
			RequestWindow:   15 * time.Minute,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      true,
			MaxLoginAttemptsPerIP: 50,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// ProductionConfig returns the default configuration for a production deployment:
// production guards on, audit and metrics enabled.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	if c.Session.TouchInterval < 0 {
		return errors.New("Session TouchInterval must be >= 0")
	}
	if c.Session.RedisPrefix != "" && c.Session.RedisPrefix == c.Session.IndexPrefix {
		return errors.New("Session RedisPrefix and IndexPrefix must differ")
	}

	if c.Password.Memory < 8192 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 0 || c.Password.MaxLength < 0 {
		return errors.New("Password length bounds must be >= 0")
	}
	if c.Password.MaxLength > 0 && c.Password.MinLength > c.Password.MaxLength {
		return errors.New("Password MinLength must be <= MaxLength")
	}

	if c.PasswordReset.Enabled {
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("PasswordReset ResetTTL must be > 0")
		}
		if c.PasswordReset.MaxRequests < 0 {
			return errors.New("PasswordReset MaxRequests must be >= 0")
		}
		if c.PasswordReset.MaxRequests > 0 && c.PasswordReset.RequestWindow <= 0 {
			return errors.New("PasswordReset RequestWindow must be > 0 when MaxRequests is set")
		}
		if c.PasswordReset.AsyncDelivery && c.PasswordReset.DeliveryTimeout <= 0 {
			return errors.New("PasswordReset DeliveryTimeout must be > 0 with AsyncDelivery")
		}
	}

	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxLoginAttemptsPerIP < 0 {
		return errors.New("login attempt limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("LoginCooldownDuration must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 65536 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Security.MaxLoginAttempts == 0 {
			return errors.New("ProductionMode requires login throttling")
		}
	}

	return nil
}

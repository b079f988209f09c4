package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/internal/logging"
)

// Config is the root of the daemon configuration file.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  logging.Config `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	// Seed principals are loaded into the in-memory directory when no
	// Postgres DSN is configured.
	Seed []SeedPrincipal `yaml:"seed"`
}

type HTTPConfig struct {
	Addr           string          `yaml:"addr"`
	ReadTimeout    time.Duration   `yaml:"read_timeout"`
	WriteTimeout   time.Duration   `yaml:"write_timeout"`
	IdleTimeout    time.Duration   `yaml:"idle_timeout"`
	TrustForwarded bool            `yaml:"trust_forwarded"`
	SecureCookies  bool            `yaml:"secure_cookies"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is the per-IP budget of the unauthenticated endpoints.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// RedisConfig selects the Redis server. An empty Addr starts an embedded
// miniredis, for development only.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	Production    bool                `yaml:"production"`
	JWT           JWTConfig           `yaml:"jwt"`
	PasswordReset PasswordResetConfig `yaml:"password_reset"`
	Audit         bool                `yaml:"audit"`
	Metrics       bool                `yaml:"metrics"`
}

// JWTConfig selects the signing key. hs256 reads Secret; ed25519 reads a
// PEM private key from PrivateKeyFile.
type JWTConfig struct {
	SigningMethod  string        `yaml:"signing_method"`
	Secret         string        `yaml:"secret"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
}

type PasswordResetConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	AsyncDelivery bool          `yaml:"async_delivery"`
}

type SeedPrincipal struct {
	ID       string `yaml:"id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Load reads path, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used without a file, with environment
// overrides applied. It is not validated.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	engine := estateAuth.DefaultConfig()
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit: RateLimitConfig{
				PerSecond: 5,
				Burst:     20,
			},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				SigningMethod: engine.JWT.SigningMethod,
				Issuer:        engine.JWT.Issuer,
				AccessTTL:     engine.JWT.AccessTTL,
				RefreshTTL:    engine.JWT.RefreshTTL,
			},
			PasswordReset: PasswordResetConfig{
				TTL: engine.PasswordReset.ResetTTL,
			},
			Metrics: true,
		},
	}
}

// applyEnvOverrides follows the ESTATE_AUTH_SECTION_KEY pattern.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ESTATE_AUTH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("ESTATE_AUTH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ESTATE_AUTH_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	// Setting a secret implies hs256.
	if v := os.Getenv("ESTATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWT.Secret = v
		cfg.Auth.JWT.SigningMethod = "hs256"
	}
}

// Validate checks the daemon-level settings. Engine settings are checked
// again by [estateAuth.Config.Validate] when the engine is built.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Addr == "" {
		errs = append(errs, "http.addr is required")
	}
	if c.HTTP.RateLimit.PerSecond < 0 || c.HTTP.RateLimit.Burst < 0 {
		errs = append(errs, "http.rate_limit values must be >= 0")
	}

	const minSecretLength = 32
	switch strings.ToLower(c.Auth.JWT.SigningMethod) {
	case "hs256":
		if len(c.Auth.JWT.Secret) < minSecretLength {
			errs = append(errs, "auth.jwt.secret must be at least 32 characters (set ESTATE_AUTH_JWT_SECRET)")
		}
	case "ed25519":
		if c.Auth.JWT.PrivateKeyFile == "" {
			errs = append(errs, "auth.jwt.private_key_file is required for ed25519")
		}
	default:
		errs = append(errs, "auth.jwt.signing_method must be ed25519 or hs256")
	}

	if c.Auth.Production {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required in production")
		}
		if c.Postgres.DSN == "" {
			errs = append(errs, "postgres.dsn is required in production")
		}
		if len(c.Seed) > 0 {
			errs = append(errs, "seed principals are not allowed in production")
		}
	}

	for i, s := range c.Seed {
		if s.ID == "" || s.Email == "" || s.Password == "" {
			errs = append(errs, fmt.Sprintf("seed[%d]: id, email and password are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EngineConfig translates the auth section into an engine configuration.
// The ed25519 key file is read here.
func (c *Config) EngineConfig() (estateAuth.Config, error) {
	out := estateAuth.DefaultConfig()
	if c.Auth.Production {
		out = estateAuth.ProductionConfig()
	}

	jwt := c.Auth.JWT
	out.JWT.SigningMethod = strings.ToLower(jwt.SigningMethod)
	if jwt.Issuer != "" {
		out.JWT.Issuer = jwt.Issuer
	}
	out.JWT.Audience = jwt.Audience
	if jwt.AccessTTL > 0 {
		out.JWT.AccessTTL = jwt.AccessTTL
	}
	if jwt.RefreshTTL > 0 {
		out.JWT.RefreshTTL = jwt.RefreshTTL
	}

	switch out.JWT.SigningMethod {
	case "hs256":
		out.JWT.PrivateKey = []byte(jwt.Secret)
	case "ed25519":
		pem, err := os.ReadFile(jwt.PrivateKeyFile)
		if err != nil {
			return estateAuth.Config{}, fmt.Errorf("reading jwt private key: %w", err)
		}
		out.JWT.PrivateKey = pem
	}

	if c.Auth.PasswordReset.TTL > 0 {
		out.PasswordReset.ResetTTL = c.Auth.PasswordReset.TTL
	}
	out.PasswordReset.AsyncDelivery = c.Auth.PasswordReset.AsyncDelivery
	out.Audit.Enabled = out.Audit.Enabled || c.Auth.Audit
	out.Metrics.Enabled = out.Metrics.Enabled || c.Auth.Metrics

	return out, out.Validate()
}

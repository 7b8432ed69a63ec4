package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// minSecretBytes is the minimum entropy required of each signing secret.
	minSecretBytes = 32
)

// Config is the explicit process configuration. It is constructed once at
// startup and passed by reference; nothing in the codebase reads the
// environment after Load returns.
type Config struct {
	Environment string `env:"SAVDO_ENV" env-default:"development"`

	HTTPAddr        string        `env:"SAVDO_HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `env:"SAVDO_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SAVDO_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `env:"SAVDO_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SAVDO_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// PostgresDSN points at the external user store. Empty disables the
	// database-backed user lookup (useful for tests and local demos).
	PostgresDSN string `env:"SAVDO_PG_DSN" env-default:""`

	// RedisAddr selects the shared-cache backend for sessions and the
	// revocation ledger. Empty forces the in-process fallback stores.
	RedisAddr     string `env:"SAVDO_REDIS_ADDR" env-default:""`
	RedisPassword string `env:"SAVDO_REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"SAVDO_REDIS_DB" env-default:"0"`

	AccessTokenSecret  string        `env:"SAVDO_ACCESS_SECRET" env-default:""`
	RefreshTokenSecret string        `env:"SAVDO_REFRESH_SECRET" env-default:""`
	AccessTokenTTL     time.Duration `env:"SAVDO_ACCESS_TTL" env-default:"30m"`
	RefreshTokenTTL    time.Duration `env:"SAVDO_REFRESH_TTL" env-default:"720h"`

	BcryptCost int `env:"SAVDO_BCRYPT_COST" env-default:"12"`

	AutoRefresh        bool          `env:"SAVDO_AUTO_REFRESH" env-default:"true"`
	RefreshGracePeriod time.Duration `env:"SAVDO_REFRESH_GRACE" env-default:"120s"`
	MaxSessionsPerUser int           `env:"SAVDO_MAX_SESSIONS" env-default:"5"`
	ActivityExtension  bool          `env:"SAVDO_ACTIVITY_EXTENSION" env-default:"true"`

	SweepInterval time.Duration `env:"SAVDO_SWEEP_INTERVAL" env-default:"1h"`

	// EphemeralSecrets is set by Load when development mode generated the
	// signing secrets. Callers should warn: every restart invalidates all
	// outstanding tokens.
	EphemeralSecrets bool `env:"-"`
}

// Load reads .env (when present), then the environment, then validates.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Environment != EnvProduction && c.Environment != EnvDevelopment {
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}

	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		if c.Environment == EnvProduction {
			return errors.New("config: token secrets are required in production")
		}
		if err := c.generateEphemeralSecrets(); err != nil {
			return err
		}
	}
	if len(c.AccessTokenSecret) < minSecretBytes {
		return fmt.Errorf("config: access secret must be at least %d bytes", minSecretBytes)
	}
	if len(c.RefreshTokenSecret) < minSecretBytes {
		return fmt.Errorf("config: refresh secret must be at least %d bytes", minSecretBytes)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh secrets must differ")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return errors.New("config: access lifetime must be shorter than refresh lifetime")
	}
	if c.BcryptCost < 10 || c.BcryptCost > 15 {
		return fmt.Errorf("config: bcrypt cost %d outside supported range [10,15]", c.BcryptCost)
	}
	if c.MaxSessionsPerUser < 1 {
		return errors.New("config: max sessions per user must be at least 1")
	}
	if c.RefreshGracePeriod < 0 {
		return errors.New("config: refresh grace period must not be negative")
	}
	if c.SweepInterval <= 0 {
		return errors.New("config: sweep interval must be positive")
	}
	return nil
}

func (c *Config) generateEphemeralSecrets() error {
	access, err := randomSecret()
	if err != nil {
		return err
	}
	refresh, err := randomSecret()
	if err != nil {
		return err
	}
	c.AccessTokenSecret = access
	c.RefreshTokenSecret = refresh
	c.EphemeralSecrets = true
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, minSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsProduction reports whether the process runs with production guarantees.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

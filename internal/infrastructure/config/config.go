package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Tokens  TokenConfig
	Hashing HashConfig
	Reset   ResetConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	SMTP    SMTPConfig
}

// TokenConfig holds the signing secrets and validity windows. The
// *_PREVIOUS_SECRETS lists let the verifier keep accepting tokens
// signed before a key rollover.
type TokenConfig struct {
	AccessSecret       string        `env:"ACCESS_TOKEN_SECRET"`
	AccessExpiry       time.Duration `env:"ACCESS_TOKEN_EXPIRY,  default=15m"`
	AccessPrevSecrets  []string      `env:"ACCESS_TOKEN_PREVIOUS_SECRETS"`
	RefreshSecret      string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshExpiry      time.Duration `env:"REFRESH_TOKEN_EXPIRY, default=168h"`
	RefreshPrevSecrets []string      `env:"REFRESH_TOKEN_PREVIOUS_SECRETS"`
}

type HashConfig struct {
	BcryptCost int `env:"BCRYPT_COST,  default=10"`
	Workers    int `env:"HASH_WORKERS, default=4"`
}

type ResetConfig struct {
	TokenTTL time.Duration `env:"RESET_TOKEN_TTL, default=10m"`
	BaseURL  string        `env:"RESET_BASE_URL,  default=http://localhost:8080"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=worldlaptopcare"`
}

type RedisConfig struct {
	Addr          string        `env:"REDIS_ADDR, default=localhost:6379"`
	DB            int           `env:"REDIS_DB,   default=0"`
	MaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS,   default=10"`
	AttemptWindow time.Duration `env:"LOGIN_ATTEMPT_WINDOW, default=15m"`
}

type SMTPConfig struct {
	Addr     string `env:"SMTP_ADDR, default=localhost:587"`
	From     string `env:"SMTP_FROM, default=no-reply@worldlaptopcare.com"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Tokens.AccessSecret == "" || cfg.Tokens.RefreshSecret == "" {
		return nil, fmt.Errorf("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	return &cfg, nil
}

// Development reports whether the service runs in development mode.
// Cookies carry the Secure attribute everywhere else.
func (c *Config) Development() bool {
	return c.Env == "development"
}

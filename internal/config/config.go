package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	AdminToken            string `env:"ADMIN_TOKEN,required"`
	AllowedOrigins        string `env:"ALLOWED_ORIGINS" envDefault:"*"`
	DefaultTTLMinutes     int    `env:"DEFAULT_TTL_MINUTES" envDefault:"30"`
	PinLength             int    `env:"PIN_LENGTH" envDefault:"12"`
	VerifyRateLimitPerMin int    `env:"VERIFY_RATE_LIMIT_PER_MIN" envDefault:"30"`
	PinRetentionDays      int    `env:"PIN_RETENTION_DAYS" envDefault:"0"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

// Origins splits ALLOWED_ORIGINS into a trimmed list. A single "*" means
// any origin is allowed.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// RetentionPeriod returns how long used PINs are kept before the retention
// job may purge them. Zero means keep forever.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.PinRetentionDays) * 24 * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.DefaultTTLMinutes < 1 || c.DefaultTTLMinutes > MaxTTLMinutes {
		return fmt.Errorf("DEFAULT_TTL_MINUTES must be between 1 and %d", MaxTTLMinutes)
	}
	if c.PinLength < MinPinLength || c.PinLength > MaxPinLength {
		return fmt.Errorf("PIN_LENGTH must be between %d and %d", MinPinLength, MaxPinLength)
	}
	if c.PinRetentionDays < 0 {
		return fmt.Errorf("PIN_RETENTION_DAYS must not be negative")
	}

	if isProduction {
		if err := validateSecret("ADMIN_TOKEN", c.AdminToken); err != nil {
			return err
		}
		if c.AllowedOrigins == "*" {
			log.Warn().Msg("ALLOWED_ORIGINS is a wildcard in production: any origin may call this service")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

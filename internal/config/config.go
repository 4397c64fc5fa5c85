// Package config loads gateway configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "HEARTH"

// Config carries every runtime setting of the gateway process.
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`

	PGDSN string `mapstructure:"pg_dsn"`

	// AuthSecret signs and verifies user bearer tokens (HS256).
	AuthSecret string `mapstructure:"auth_secret"`
	// ServiceKey is the trusted credential used by internal callers and
	// background workers. Checked before any token exchange.
	ServiceKey string `mapstructure:"service_key"`

	RateBurst  int `mapstructure:"rate_burst"`
	RatePerSec int `mapstructure:"rate_per_sec"`

	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	ResolverCacheSize int           `mapstructure:"resolver_cache_size"`
	ResolverCacheTTL  time.Duration `mapstructure:"resolver_cache_ttl"`

	MigrationsDir string `mapstructure:"migrations_dir"`
	SeedsDir      string `mapstructure:"seeds_dir"`
}

// Load reads HEARTH_* environment variables with sane defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("auth_secret", "")
	v.SetDefault("service_key", "")
	v.SetDefault("rate_burst", 50)
	v.SetDefault("rate_per_sec", 25)
	v.SetDefault("max_body_bytes", int64(1<<20))
	v.SetDefault("resolver_cache_size", 512)
	v.SetDefault("resolver_cache_ttl", 10*time.Minute)
	v.SetDefault("migrations_dir", "migrations")
	v.SetDefault("seeds_dir", "seeds")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("config: addr is required")
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("config: max_body_bytes must be positive")
	}
	return nil
}

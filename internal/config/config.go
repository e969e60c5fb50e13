// Package config loads the server configuration with viper.
//
// Sources, highest priority first:
//
//	SPRINTIUM_* environment variables   (SPRINTIUM_JWT_SECRET, SPRINTIUM_REDIS_URL, ...)
//	sprintium.yaml                      (./ or /etc/sprintium/, or --config)
//	defaults below
//
// Nested keys map to env names with "." replaced by "_":
// rate.auth_per_minute is SPRINTIUM_RATE_AUTH_PER_MINUTE.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const minSecretLength = 16

// Config is the complete server configuration.
type Config struct {
	Port        int           `mapstructure:"port"`
	DBPath      string        `mapstructure:"db_path"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	ResetSecret string        `mapstructure:"reset_secret"`
	AccessTTL   time.Duration `mapstructure:"access_ttl"`
	ResetTTL    time.Duration `mapstructure:"reset_ttl"`
	Redis       RedisConfig   `mapstructure:"redis"`
	Rate        RateConfig    `mapstructure:"rate"`
	Log         LogConfig     `mapstructure:"log"`
}

// RedisConfig selects the token denylist backend. An empty URL keeps the
// denylist in SQLite.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RateConfig holds per-minute request budgets.
type RateConfig struct {
	AuthPerMinute int `mapstructure:"auth_per_minute"`
	APIPerMinute  int `mapstructure:"api_per_minute"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from cfgFile (if non-empty), the default search
// paths and the environment, then validates it.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sprintium")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sprintium")
	}

	v.SetEnvPrefix("SPRINTIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key, which is also what lets AutomaticEnv
// find env-only values during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/sprintium.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("reset_secret", "")
	v.SetDefault("access_ttl", 30*time.Minute)
	v.SetDefault("reset_ttl", 15*time.Minute)

	v.SetDefault("redis.url", "")

	v.SetDefault("rate.auth_per_minute", 10)
	v.SetDefault("rate.api_per_minute", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}

	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("jwt_secret must be at least %d characters", minSecretLength)
	}
	if len(c.ResetSecret) < minSecretLength {
		return fmt.Errorf("reset_secret must be at least %d characters", minSecretLength)
	}
	if c.JWTSecret == c.ResetSecret {
		return errors.New("reset_secret must differ from jwt_secret")
	}

	if c.AccessTTL <= 0 {
		return fmt.Errorf("access_ttl must be positive (got %s)", c.AccessTTL)
	}
	if c.ResetTTL <= 0 {
		return fmt.Errorf("reset_ttl must be positive (got %s)", c.ResetTTL)
	}

	if c.Rate.AuthPerMinute < 1 || c.Rate.APIPerMinute < 1 {
		return errors.New("rate limits must be at least 1 request per minute")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

// NewLogger builds the process logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
}

// Package config loads session server settings from .env, config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Credential backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration values.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Remote reservation service.
	APIBaseURL         string  `mapstructure:"API_BASE_URL"`
	HTTPTimeoutSeconds int     `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	OutboundRPS        float64 `mapstructure:"OUTBOUND_RPS"`

	// Credential persistence.
	CredentialBackend string `mapstructure:"CREDENTIAL_BACKEND"`
	CredentialProfile string `mapstructure:"CREDENTIAL_PROFILE"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int    `mapstructure:"REDIS_DB"`

	// Local server behaviour.
	RateLimitPerMin            int `mapstructure:"RATE_LIMIT_PER_MIN"`
	FormIdleMinutes            int `mapstructure:"FORM_IDLE_MINUTES"`
	AvailabilityRefreshSeconds int `mapstructure:"AVAILABILITY_REFRESH_SECONDS"`

	// Mock remote service (-mock).
	MockAccessTTLSeconds int    `mapstructure:"MOCK_ACCESS_TTL_SECONDS"`
	MockJWTSecret        string `mapstructure:"MOCK_JWT_SECRET"`
}

var defaults = map[string]any{
	"ENV":                          "development",
	"LOG_LEVEL":                    "info",
	"API_BASE_URL":                 "http://localhost:8080/api/v1",
	"HTTP_TIMEOUT_SECONDS":         30,
	"OUTBOUND_RPS":                 0,
	"CREDENTIAL_BACKEND":           BackendSQLite,
	"CREDENTIAL_PROFILE":           "default",
	"REDIS_ADDR":                   "localhost:6379",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"RATE_LIMIT_PER_MIN":           300,
	"FORM_IDLE_MINUTES":            30,
	"AVAILABILITY_REFRESH_SECONDS": 30,
	"MOCK_ACCESS_TTL_SECONDS":      900,
	"MOCK_JWT_SECRET":              "spacebook-mock-secret",
}

// Load reads an optional .env file, then config.yaml from the working
// directory or ./config, then the environment. Later sources win.
func Load(paths ...string) (*Config, error) {
	// .env is optional; variables already set are not overwritten.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.CredentialBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.CredentialProfile == "" {
		return errors.New("CREDENTIAL_PROFILE is required")
	}
	return nil
}

// IsProduction checks if the environment is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HTTPTimeout is the per-exchange timeout for the remote service.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// FormIdleTTL is how long an untouched booking form is kept.
func (c *Config) FormIdleTTL() time.Duration {
	return time.Duration(c.FormIdleMinutes) * time.Minute
}

// AvailabilityInterval is the period of the availability watcher.
func (c *Config) AvailabilityInterval() time.Duration {
	return time.Duration(c.AvailabilityRefreshSeconds) * time.Second
}

// MockAccessTTL is the lifetime of access tokens issued by the mock service.
func (c *Config) MockAccessTTL() time.Duration {
	return time.Duration(c.MockAccessTTLSeconds) * time.Second
}

// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"feedsync/internal/observability"

	"github.com/spf13/viper"
)

// Session persistence backends.
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendSQL    = "sql"
	SessionBackendMemory = "memory"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	APIBaseURL      string        `mapstructure:"API_BASE_URL"`
	HTTPTimeout     time.Duration `mapstructure:"HTTP_TIMEOUT"`
	SessionBackend  string        `mapstructure:"SESSION_BACKEND"`
	SessionPath     string        `mapstructure:"SESSION_PATH"`
	SessionKey      string        `mapstructure:"SESSION_KEY"`
	SessionDSN      string        `mapstructure:"SESSION_DSN"`
	SessionCookie   string        `mapstructure:"SESSION_COOKIE"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	NotifyChannel   string        `mapstructure:"NOTIFY_CHANNEL"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	TracingEnabled  bool          `mapstructure:"TRACING_ENABLED"`
	TracingExporter string        `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string        `mapstructure:"OTLP_ENDPOINT"`
	Env             string        `mapstructure:"APP_ENV"`

	// Development API server.
	DevAPIPort string `mapstructure:"DEVAPI_PORT"`
	JWTSecret  string `mapstructure:"JWT_SECRET"`
	SeedUsers  int    `mapstructure:"SEED_USERS"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		observability.GlobalLogger.Info("loaded profile-specific configuration", "file", "config."+env+".yml")
	}

	viper.SetDefault("API_BASE_URL", "http://localhost:4000")
	viper.SetDefault("HTTP_TIMEOUT", "15s")
	viper.SetDefault("SESSION_BACKEND", SessionBackendFile)
	viper.SetDefault("SESSION_PATH", ".feedsync/session.yml")
	viper.SetDefault("SESSION_KEY", "feedsync:session")
	viper.SetDefault("SESSION_DSN", ".feedsync/session.db")
	viper.SetDefault("SESSION_COOKIE", "token")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("NOTIFY_CHANNEL", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DEVAPI_PORT", "4000")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("SEED_USERS", 0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.SessionBackend = strings.ToLower(strings.TrimSpace(config.SessionBackend))
	config.APIBaseURL = strings.TrimRight(strings.TrimSpace(config.APIBaseURL), "/")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q must be an absolute URL", c.APIBaseURL)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.SessionKey == "" {
		return errors.New("SESSION_KEY is required")
	}

	switch c.SessionBackend {
	case SessionBackendFile:
		if c.SessionPath == "" {
			return errors.New("SESSION_PATH is required for the file session backend")
		}
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis session backend")
		}
	case SessionBackendSQL:
		if c.SessionDSN == "" {
			return errors.New("SESSION_DSN is required for the sql session backend")
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	if c.NotifyChannel != "" && c.RedisURL == "" {
		return errors.New("NOTIFY_CHANNEL requires REDIS_URL")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction && u.Scheme != "https" {
		observability.GlobalLogger.Warn("API_BASE_URL is not https in production; session tokens travel in clear text")
	}

	return nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// TracingConfig derives the tracer settings for the given service.
func (c *Config) TracingConfig(service, version string) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    c.Env,
		Enabled:        c.TracingEnabled,
		Exporter:       c.TracingExporter,
		OTLPEndpoint:   c.OTLPEndpoint,
		SamplerRatio:   1.0,
	}
}

// Package config provides configuration management for the F1 predictor.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Artifact   ArtifactConfig   `mapstructure:"artifact" validate:"required"`
	Classifier ClassifierConfig `mapstructure:"classifier" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Health     HealthConfig     `mapstructure:"health"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ArtifactConfig points at the trained model artifact
type ArtifactConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ClassifierConfig selects and configures the classifier backend
type ClassifierConfig struct {
	Backend        string `mapstructure:"backend" validate:"required,backend"`
	URL            string `mapstructure:"url" validate:"required_if=Backend http,omitempty,url"`
	GRPCAddress    string `mapstructure:"grpc_address" validate:"required_if=Backend grpc"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts  int    `mapstructure:"retry_attempts" validate:"gte=0,lte=10"`
	ModelVersion   string `mapstructure:"model_version"`

	BreakerFailures        int `mapstructure:"breaker_failures" validate:"gte=0"`
	BreakerWindowSeconds   int `mapstructure:"breaker_window_seconds" validate:"gte=0"`
	BreakerCooldownSeconds int `mapstructure:"breaker_cooldown_seconds" validate:"gte=0"`
}

// ServerConfig represents the web form server configuration
type ServerConfig struct {
	Address             string  `mapstructure:"address" validate:"required"`
	ReadTimeoutSeconds  int     `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds int     `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
	RateLimitPerSecond  float64 `mapstructure:"rate_limit_per_second" validate:"gte=0"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst" validate:"gte=0"`
	ExposeVector        bool    `mapstructure:"expose_vector"`
}

// CacheConfig represents prediction cache configuration
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds" validate:"required_if=Enabled true,gte=0"`
	MaxSize    int  `mapstructure:"max_size" validate:"required_if=Enabled true,gte=0"`
}

// HealthConfig represents health check server configuration
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// SecretsConfig enables the AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ClassifierTimeout returns the classifier request timeout
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// BreakerWindow returns the window in which classifier failures are counted
func (c *Config) BreakerWindow() time.Duration {
	return time.Duration(c.Classifier.BreakerWindowSeconds) * time.Second
}

// BreakerCooldown returns how long an open breaker rejects calls
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Classifier.BreakerCooldownSeconds) * time.Second
}

// CacheTTL returns the prediction cache TTL
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// MetricsAddress returns the listen address of the metrics endpoint
func (c *Config) MetricsAddress() string {
	return fmt.Sprintf(":%d", c.Metrics.Port)
}

// Package config loads configuration from an optional file and
// WEBCLIENT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// WEBCLIENT_SERVER_URL.
const EnvPrefix = "WEBCLIENT"

// Config holds all client configuration.
type Config struct {
	// Server
	ServerURL         string `mapstructure:"server_url"`
	AccessToken       string `mapstructure:"access_token"`
	Username          string `mapstructure:"username"`
	Language          string `mapstructure:"language"`
	ClientInitiatorID string `mapstructure:"client_initiator_id"`

	// Transport
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`

	// Bulk workers
	ConcurrentRequests int `mapstructure:"concurrent_requests"`

	// URL signing
	URLSigningEnabled bool          `mapstructure:"url_signing_enabled"`
	SignURLTimeout    time.Duration `mapstructure:"sign_url_timeout"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Metrics (empty = disabled)
	MetricsAddr string `mapstructure:"metrics_addr"`

	// OIDC token refresh (optional)
	OIDCIssuer   string `mapstructure:"oidc_issuer"`
	OIDCClientID string `mapstructure:"oidc_client_id"`
	RefreshToken string `mapstructure:"refresh_token"`
}

var defaults = map[string]any{
	"server_url":          "",
	"access_token":        "",
	"username":            "",
	"language":            "en",
	"client_initiator_id": "",
	"request_timeout":     30 * time.Second,
	"retry_attempts":      3,
	"concurrent_requests": 4,
	"url_signing_enabled": false,
	"sign_url_timeout":    24 * time.Hour,
	"log_level":           "info",
	"log_format":          "console",
	"metrics_addr":        "",
	"oidc_issuer":         "",
	"oidc_client_id":      "",
	"refresh_token":       "",
}

// Load reads configuration from path (if not empty) and the environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if c.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent_requests must be positive, got %d", c.ConcurrentRequests)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must not be negative, got %d", c.RetryAttempts)
	}
	if c.RefreshToken != "" && (c.OIDCIssuer == "" || c.OIDCClientID == "") {
		return errors.New("refresh_token requires oidc_issuer and oidc_client_id")
	}
	return nil
}

// BaseURL returns the server URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.ServerURL, "/")
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Panorama PanoramaConfig
	Push     PushConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/address-manager.db"`
}

// PanoramaConfig holds Panorama device configuration. Either APIKey or
// Username/Password must be set; with only credentials, an API key is
// generated at startup via the keygen endpoint and the credentials are
// not kept.
type PanoramaConfig struct {
	Host          string `env:"PANORAMA_HOST"`
	APIKey        string `env:"PANORAMA_API_KEY"`
	Username      string `env:"PANORAMA_USERNAME"`
	Password      string `env:"PANORAMA_PASSWORD"`
	DeviceGroup   string `env:"PANORAMA_DEVICE_GROUP"`
	SkipTLSVerify bool   `env:"PANORAMA_SKIP_TLS_VERIFY" envDefault:"false"`
	FileShim      string `env:"PANORAMA_FILE_SHIM"` // Path to file for testing shim (disables real API)
}

// PushConfig holds push behavior configuration.
type PushConfig struct {
	AutoPush        bool          `env:"AUTO_PUSH" envDefault:"true"`
	Debounce        time.Duration `env:"PUSH_DEBOUNCE" envDefault:"5s"`
	BootstrapAPIKey string        `env:"BOOTSTRAP_API_KEY"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Panorama); err != nil {
		return nil, fmt.Errorf("parsing panorama config: %w", err)
	}
	if err := env.Parse(&cfg.Push); err != nil {
		return nil, fmt.Errorf("parsing push config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// If using the file shim, device settings are not required
	if c.Panorama.FileShim == "" {
		if c.Panorama.Host == "" {
			return fmt.Errorf("PANORAMA_HOST is required (or set PANORAMA_FILE_SHIM for testing)")
		}
		if c.Panorama.DeviceGroup == "" {
			return fmt.Errorf("PANORAMA_DEVICE_GROUP is required (or set PANORAMA_FILE_SHIM for testing)")
		}
		if c.Panorama.APIKey == "" && (c.Panorama.Username == "" || c.Panorama.Password == "") {
			return fmt.Errorf("PANORAMA_API_KEY or PANORAMA_USERNAME/PANORAMA_PASSWORD is required")
		}
	}
	return nil
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.Panorama.FileShim != ""
}

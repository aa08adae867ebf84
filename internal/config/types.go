// Package config loads server configuration from file, environment
// variables and flags.
package config

import "fmt"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// StoreConfig holds analytic store settings.
type StoreConfig struct {
	// Database is the DuckDB file path, or ":memory:".
	Database string `koanf:"database"`
	// Workers is the number of cached store connections.
	Workers int `koanf:"workers"`
}

// MetadataConfig holds the SQLite project-metadata settings.
type MetadataConfig struct {
	Path string `koanf:"path"`
}

// AuthConfig holds Supabase token-validation settings.
type AuthConfig struct {
	// Disabled switches to a static local-dev resolver.
	Disabled bool   `koanf:"disabled"`
	URL      string `koanf:"url"`
	APIKey   string `koanf:"api_key"`
}

// LLMConfig holds the chart-suggestion collaborator settings.
type LLMConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// SecretsConfig holds the encryption key for stored credentials.
type SecretsConfig struct {
	// Key is a hex-encoded 32-byte AES key.
	Key string `koanf:"key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Metadata MetadataConfig `koanf:"metadata"`
	Auth     AuthConfig     `koanf:"auth"`
	LLM      LLMConfig      `koanf:"llm"`
	Secrets  SecretsConfig  `koanf:"secrets"`
	Log      LogConfig      `koanf:"log"`
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Store.Workers <= 0 {
		return fmt.Errorf("store workers must be positive, got %d", c.Store.Workers)
	}
	if !c.Auth.Disabled && (c.Auth.URL == "" || c.Auth.APIKey == "") {
		return fmt.Errorf("auth is enabled but url or api_key is missing")
	}
	return nil
}

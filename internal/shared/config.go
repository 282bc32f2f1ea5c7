package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Downloads DownloadsConfig `toml:"downloads"`
	Jobs      JobsConfig      `toml:"jobs"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Watcher   WatcherConfig   `toml:"watcher"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DownloadsConfig contains library output settings.
type DownloadsConfig struct {
	Directory string `toml:"directory"`
	Format    string `toml:"format"`
}

// JobsConfig contains job queue settings.
//
// QueueLimit bounds total outstanding jobs (pending + active). TimeoutMinutes
// bounds a single sync run; zero disables the deadline. HeartbeatSeconds is
// the SSE keep-alive interval.
type JobsConfig struct {
	QueueLimit       int `toml:"queue_limit"`
	TimeoutMinutes   int `toml:"timeout_minutes"`
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
}

// CatalogConfig contains streaming catalog API settings.
type CatalogConfig struct {
	BaseURL      string  `toml:"base_url"`
	TokenURL     string  `toml:"token_url"`
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RateLimit    float64 `toml:"rate_limit"`
}

// WatcherConfig contains subscription watcher settings.
type WatcherConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks constraints that the job core assumes hold (positive queue
// bounds and intervals). Violations are reported at load time, not at use time.
func (c *Config) Validate() error {
	if c.Jobs.QueueLimit <= 0 {
		return fmt.Errorf("%w: jobs.queue_limit must be positive, got %d", ErrInvalidConfig, c.Jobs.QueueLimit)
	}
	if c.Jobs.TimeoutMinutes < 0 {
		return fmt.Errorf("%w: jobs.timeout_minutes must not be negative, got %d", ErrInvalidConfig, c.Jobs.TimeoutMinutes)
	}
	if c.Jobs.HeartbeatSeconds <= 0 {
		return fmt.Errorf("%w: jobs.heartbeat_seconds must be positive, got %d", ErrInvalidConfig, c.Jobs.HeartbeatSeconds)
	}
	if c.Watcher.Enabled && c.Watcher.IntervalMinutes <= 0 {
		return fmt.Errorf("%w: watcher.interval_minutes must be positive, got %d", ErrInvalidConfig, c.Watcher.IntervalMinutes)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

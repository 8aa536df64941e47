// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Library LibraryConfig `mapstructure:"library"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// BaseURL prefixes artifact URIs stored in catalog entries.
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LibraryConfig sets where artifacts and the catalog file live.
type LibraryConfig struct {
	DownloadsDir string `mapstructure:"downloads_dir"`
	CatalogPath  string `mapstructure:"catalog_path"`
}

// ToolsConfig locates the external media tools.
type ToolsConfig struct {
	ExtractorPath string `mapstructure:"extractor_path"`
	FFmpegPath    string `mapstructure:"ffmpeg_path"`
	// TimeoutSeconds bounds every external-tool invocation.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// JobsConfig bounds the worker pool and its queue.
type JobsConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDIOVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.timeout_seconds", 120)
	v.SetDefault("library.downloads_dir", "downloads")
	v.SetDefault("library.catalog_path", "downloads/downloads.json")
	v.SetDefault("tools.extractor_path", "yt-dlp")
	v.SetDefault("tools.ffmpeg_path", "ffmpeg")
	v.SetDefault("tools.timeout_seconds", 600)
	v.SetDefault("jobs.concurrency", 2)
	v.SetDefault("jobs.queue_depth", 16)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("server.base_url must be set")
	}
	if strings.TrimSpace(c.Library.DownloadsDir) == "" {
		return fmt.Errorf("library.downloads_dir must be set")
	}
	if strings.TrimSpace(c.Library.CatalogPath) == "" {
		return fmt.Errorf("library.catalog_path must be set")
	}
	if strings.TrimSpace(c.Tools.ExtractorPath) == "" {
		return fmt.Errorf("tools.extractor_path must be set")
	}
	if c.Tools.TimeoutSeconds <= 0 {
		return fmt.Errorf("tools.timeout_seconds must be > 0")
	}
	if c.Jobs.Concurrency <= 0 {
		return fmt.Errorf("jobs.concurrency must be > 0")
	}
	if c.Jobs.QueueDepth <= 0 {
		return fmt.Errorf("jobs.queue_depth must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// ToolTimeout converts the per-invocation tool timeout to a duration.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

// RequestTimeout converts the HTTP request timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// Package config loads the client configuration from YAML, applies
// defaults, and hot-reloads it when the file changes on disk.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var exampleConfig []byte

type Config struct {
	Server ServerConfig `yaml:"server"`
	Chat   ChatConfig   `yaml:"chat"`

	// DataDir holds the local conversation cache database.
	DataDir string `yaml:"data_dir"`

	// LogLevel is a zerolog level name (trace/debug/info/warn/error).
	LogLevel string `yaml:"log_level"`
}

type ServerConfig struct {
	// BaseURL is the API root, e.g. https://api.lionsgeek.ma/api.
	BaseURL string `yaml:"base_url"`
	// Token is the bearer token of the logged-in user. Session management
	// itself is outside the chat core.
	Token string `yaml:"token"`
}

type ChatConfig struct {
	// PollIntervalSeconds is the open-conversation poll cadence.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// UnreadPollIntervalSeconds is the chat-list badge cadence.
	UnreadPollIntervalSeconds int `yaml:"unread_poll_interval_seconds"`
	// RequestTimeoutSeconds bounds every network call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

func (c *ChatConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *ChatConfig) UnreadPollInterval() time.Duration {
	return time.Duration(c.UnreadPollIntervalSeconds) * time.Second
}

func (c *ChatConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.Chat.PollIntervalSeconds <= 0 {
		cfg.Chat.PollIntervalSeconds = 4
	}
	if cfg.Chat.UnreadPollIntervalSeconds <= 0 {
		cfg.Chat.UnreadPollIntervalSeconds = 30
	}
	if cfg.Chat.RequestTimeoutSeconds <= 0 {
		cfg.Chat.RequestTimeoutSeconds = 15
	}
	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		cfg.DataDir = filepath.Join(base, "lgchat")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	base, _ := os.UserConfigDir()
	return filepath.Join(base, "lgchat", "config.yaml")
}

// CreateFromExample writes the embedded example config to targetPath,
// creating parent directories as needed. Existing files are not
// overwritten.
func CreateFromExample(targetPath string) error {
	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("config already exists at %s", targetPath)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(targetPath, exampleConfig, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

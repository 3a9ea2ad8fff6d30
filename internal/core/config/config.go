// Package config handles configuration loading and validation for ntfyc.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hay-kot/ntfyc/internal/core/session"
	"github.com/hay-kot/ntfyc/internal/core/validate"
)

// DefaultHost is the public ntfy instance used when no host is configured.
const DefaultHost = "https://ntfy.sh"

// Config holds the application configuration.
type Config struct {
	Host    string     `yaml:"host"`
	Topic   string     `yaml:"topic"`
	Send    SendConfig `yaml:"send"`
	Hooks   []Hook     `yaml:"hooks"`
	TUI     TUIConfig  `yaml:"tui"`
	DataDir string     `yaml:"-"` // set by caller, not from config file
}

// SendConfig controls publishing.
type SendConfig struct {
	// StrictStatus treats any non-2xx response as a failed send.
	StrictStatus bool `yaml:"strict_status"`
	// Timeout bounds a single publish request. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

// TUIConfig controls the chat view.
type TUIConfig struct {
	Markdown    bool `yaml:"markdown"`
	MaxMessages int  `yaml:"max_messages"`
}

// Hook defines commands to run for messages received on matching topics.
type Hook struct {
	// Pattern matches against the topic name (doublestar glob syntax).
	Pattern string `yaml:"pattern"`
	// Commands are templates executed with `sh -c` for each message.
	Commands []string `yaml:"commands"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:  DefaultHost,
		Topic: session.DefaultTopic,
		Send: SendConfig{
			StrictStatus: true,
			Timeout:      30 * time.Second,
		},
		Hooks: []Hook{},
		TUI: TUIConfig{
			Markdown:    true,
			MaxMessages: 500,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	c.Host = validate.NormalizeHost(c.Host)
	if c.Host == "" {
		c.Host = defaults.Host
	}

	c.Topic = strings.TrimSpace(c.Topic)
	if c.Topic == "" {
		c.Topic = defaults.Topic
	}

	if c.TUI.MaxMessages == 0 {
		c.TUI.MaxMessages = defaults.TUI.MaxMessages
	}
}

// Validate checks that the configuration is usable. It is cheap and runs on
// every load; see ValidateDeep for the thorough version.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if _, err := validate.Host(c.Host); err != nil {
		return err
	}

	if err := validate.Topic(c.Topic); err != nil {
		return fmt.Errorf("topic: %w", err)
	}

	if c.Send.Timeout < 0 {
		return fmt.Errorf("send.timeout cannot be negative")
	}

	if c.TUI.MaxMessages < 0 {
		return fmt.Errorf("tui.max_messages cannot be negative")
	}

	return nil
}

// ActivityFile returns the path to the activity log.
func (c *Config) ActivityFile() string {
	return filepath.Join(c.DataDir, "activity.jsonl")
}

// HistoryFile returns the path to the recent topics file.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.DataDir, "topics.json")
}

// Save writes the configuration as YAML to path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

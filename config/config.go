// Package config provides configuration loading and management for tagmirror.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tagmirror configuration.
type Config struct {
	Source  WorkspaceConfig `yaml:"source"`
	Target  WorkspaceConfig `yaml:"target"`
	Rate    RateConfig      `yaml:"rate"`
	Cache   CacheConfig     `yaml:"cache"`
	Naming  NamingConfig    `yaml:"naming"`
	Events  EventsConfig    `yaml:"events"`
	Catalog CatalogConfig   `yaml:"catalog"`
	Log     LogConfig       `yaml:"log"`
}

// WorkspaceConfig identifies one tag-manager workspace.
type WorkspaceConfig struct {
	// AccountID is the numeric account id
	AccountID string `yaml:"account"`
	// ContainerID is the numeric container id
	ContainerID string `yaml:"container"`
	// WorkspaceID is the numeric workspace id
	WorkspaceID string `yaml:"workspace"`
	// SnapshotFile points at an exported workspace JSON for offline runs
	SnapshotFile string `yaml:"snapshotFile"`
}

// RateConfig tunes the builder's request pacing and retry policy.
type RateConfig struct {
	// RequestDelay is the minimum spacing between create calls
	RequestDelay time.Duration `yaml:"requestDelay"`
	// MaxRetries bounds retries of a rate-limited create
	MaxRetries int `yaml:"maxRetries"`
	// BackoffBase is the first retry delay; later retries double it
	BackoffBase time.Duration `yaml:"backoffBase"`
}

// CacheConfig tunes the backend response cache.
type CacheConfig struct {
	// TTL is how long cached list responses stay fresh (0 disables caching)
	TTL time.Duration `yaml:"ttl"`
}

// NamingConfig controls target-name derivation.
type NamingConfig struct {
	// Learn enables learning the target's naming convention
	Learn bool `yaml:"learn"`
	// Prefix is prepended to every created entity name
	Prefix string `yaml:"prefix"`
	// Suffix is appended to every created entity name
	Suffix string `yaml:"suffix"`
}

// EventsConfig configures the NATS event publisher.
type EventsConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
	// SubjectPrefix overrides the default event subject root
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// CatalogConfig points at the known-template-events extension file.
type CatalogConfig struct {
	// Path is a YAML file of extra tag-type → pushed-events entries
	Path string `yaml:"path"`
	// Watch reloads the file on change
	Watch bool `yaml:"watch"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Rate: RateConfig{
			RequestDelay: 4 * time.Second,
			MaxRetries:   3,
			BackoffBase:  time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Naming: NamingConfig{
			Learn: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Rate.RequestDelay < 0 {
		return fmt.Errorf("rate.requestDelay must not be negative")
	}
	if c.Rate.MaxRetries < 0 {
		return fmt.Errorf("rate.maxRetries must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// SlogLevel maps the configured level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromFile loads configuration from a YAML file. ${VAR} references in
// the file expand from the environment before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	mergeWorkspace(&c.Source, other.Source)
	mergeWorkspace(&c.Target, other.Target)

	if other.Rate.RequestDelay != 0 {
		c.Rate.RequestDelay = other.Rate.RequestDelay
	}
	if other.Rate.MaxRetries != 0 {
		c.Rate.MaxRetries = other.Rate.MaxRetries
	}
	if other.Rate.BackoffBase != 0 {
		c.Rate.BackoffBase = other.Rate.BackoffBase
	}

	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}

	if other.Naming.Learn {
		c.Naming.Learn = true
	}
	if other.Naming.Prefix != "" {
		c.Naming.Prefix = other.Naming.Prefix
	}
	if other.Naming.Suffix != "" {
		c.Naming.Suffix = other.Naming.Suffix
	}

	if other.Events.URL != "" {
		c.Events.URL = other.Events.URL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}

	if other.Catalog.Path != "" {
		c.Catalog.Path = other.Catalog.Path
		c.Catalog.Watch = other.Catalog.Watch
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

func mergeWorkspace(dst *WorkspaceConfig, src WorkspaceConfig) {
	if src.AccountID != "" {
		dst.AccountID = src.AccountID
	}
	if src.ContainerID != "" {
		dst.ContainerID = src.ContainerID
	}
	if src.WorkspaceID != "" {
		dst.WorkspaceID = src.WorkspaceID
	}
	if src.SnapshotFile != "" {
		dst.SnapshotFile = src.SnapshotFile
	}
}

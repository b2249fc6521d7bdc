// Package config defines the server configuration surface: defaults,
// YAML loading, validation, and the stable hash that ties hover ids to
// the active settings.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
)

// Config is the full server configuration.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Hover    HoverConfig  `yaml:"hover"`
	Cache    CacheConfig  `yaml:"cache"`
	Bridge   BridgeConfig `yaml:"bridge"`
}

// HoverConfig controls hover content defaults.
type HoverConfig struct {
	// DetailLevel is the detail applied when a request does not name
	// one: core, standard, or deep.
	DetailLevel string `yaml:"detail_level"`
	// IncludeMarkdown controls whether hoverPlus responses carry the
	// markdown projection by default.
	IncludeMarkdown bool `yaml:"include_markdown"`
}

// CacheConfig bounds the response caches.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// BridgeConfig controls the MCP bridge surface.
type BridgeConfig struct {
	// DiagnosticsTTLSeconds is how long bridged diagnostics stay
	// servable without a fresh document event.
	DiagnosticsTTLSeconds int `yaml:"diagnostics_ttl_seconds"`
	// WorkspaceRoots are the directories the bridge may read documents
	// from. Tool calls naming a file outside every root are denied; an
	// empty list denies all file access.
	WorkspaceRoots []string `yaml:"workspace_roots"`
}

// GetDefaultConfig returns the configuration used when no file is
// present.
func GetDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Hover: HoverConfig{
			DetailLevel:     "standard",
			IncludeMarkdown: true,
		},
		Cache: CacheConfig{
			Capacity: 512,
		},
		Bridge: BridgeConfig{
			DiagnosticsTTLSeconds: 300,
		},
	}
}

// LoadConfig reads a YAML config file, filling unset fields from the
// defaults. A missing file is not an error; the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := GetDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			common.CLILogger.Debug("no config file at %s, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes and checks the configuration, fixing recoverable
// problems in place.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "info"
	default:
		return fmt.Errorf("invalid log_level %q: must be debug, info, warn, or error", c.LogLevel)
	}

	switch c.Hover.DetailLevel {
	case "core", "standard", "deep":
	case "":
		c.Hover.DetailLevel = "standard"
	default:
		return fmt.Errorf("invalid hover.detail_level %q: must be core, standard, or deep", c.Hover.DetailLevel)
	}

	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 512
	}
	if c.Bridge.DiagnosticsTTLSeconds <= 0 {
		c.Bridge.DiagnosticsTTLSeconds = 300
	}
	return nil
}

// Hash returns a stable digest of the configuration. Hover ids embed it
// so cached hover content is never correlated across config changes.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "unhashable"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveConfig writes the configuration as YAML, creating parent
// directories as needed.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// GetDefaultConfigPath returns the per-user config location.
func GetDefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "domainforge-lsp.yaml"
	}
	return filepath.Join(home, ".domainforge-lsp", "config.yaml")
}

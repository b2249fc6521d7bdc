package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "standard", cfg.Hover.DetailLevel)
	assert.True(t, cfg.Hover.IncludeMarkdown)
	assert.Equal(t, 512, cfg.Cache.Capacity)
	assert.Equal(t, 300, cfg.Bridge.DiagnosticsTTLSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestValidateNormalizesEmptyFields(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "standard", cfg.Hover.DetailLevel)
	assert.Equal(t, 512, cfg.Cache.Capacity)
	assert.Equal(t, 300, cfg.Bridge.DiagnosticsTTLSeconds)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad detail level", func(c *Config) { c.Hover.DetailLevel = "maximal" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "log_level: debug\nhover:\n  detail_level: deep\ncache:\n  capacity: 64\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "deep", cfg.Hover.DetailLevel)
	assert.Equal(t, 64, cfg.Cache.Capacity)
	// untouched sections keep their defaults
	assert.Equal(t, 300, cfg.Bridge.DiagnosticsTTLSeconds)
}

func TestLoadConfigWorkspaceRoots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "bridge:\n  workspace_roots:\n    - /srv/models\n    - /home/dev/models\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/models", "/home/dev/models"}, cfg.Bridge.WorkspaceRoots)

	// roots participate in the config hash
	plain := GetDefaultConfig()
	assert.NotEqual(t, plain.Hash(), cfg.Hash())
}

func TestLoadConfigRejectsInvalidContent(t *testing.T) {
	dir := t.TempDir()

	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte(":\n  - ["), 0o644))
	_, err := LoadConfig(badYAML)
	assert.Error(t, err)

	badValue := filepath.Join(dir, "value.yaml")
	require.NoError(t, os.WriteFile(badValue, []byte("log_level: shouting\n"), 0o644))
	_, err = LoadConfig(badValue)
	assert.Error(t, err)
}

func TestHashIsStableAndSensitive(t *testing.T) {
	a := GetDefaultConfig()
	b := GetDefaultConfig()
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Len(t, a.Hash(), 64)

	b.Hover.DetailLevel = "deep"
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.LogLevel = "warn"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoadFromPath_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[provider]
base_url = "https://example.com/v1"
model = "gpt-4o"

[storage]
backend = "sqlite"

[defaults]
temperature = 0.3
system_prompt = "be brief"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "be brief", cfg.Defaults.SystemPrompt)

	mc := cfg.ModelConfig()
	require.NotNil(t, mc.Temperature)
	assert.InDelta(t, 0.3, *mc.Temperature, 1e-12)
	assert.Nil(t, mc.MaxTokens)
}

func TestLoadFromPath_EnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[provider]\napi_key = \"from-file\"\n"), 0o600))
	t.Setenv("LOOM_API_KEY", "from-env")
	t.Setenv("LOOM_MODEL", "gpt-4o")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url", func(c *Config) { c.Provider.BaseURL = "not a url" }, "provider.base_url"},
		{"empty model", func(c *Config) { c.Provider.Model = "" }, "provider.model"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"non-local addr", func(c *Config) { c.Server.Addr = "0.0.0.0:7357" }, "server.addr"},
		{"zero rate limit", func(c *Config) { c.Server.RateLimit = 0 }, "server.rate_limit"},
		{"bad share endpoint", func(c *Config) { c.Share.Endpoint = "ftp://x" }, "share.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveToPath_RoundTripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Provider.APIKey = "sk-secret"
	cfg.Defaults.MaxTokens = 2048

	require.NoError(t, SaveToPath(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", got.Provider.APIKey)
	assert.Equal(t, 2048, got.Defaults.MaxTokens)
}

func TestStatePath_DefaultsPerBackend(t *testing.T) {
	cfg := Default()
	p, err := cfg.StatePath()
	require.NoError(t, err)
	assert.Equal(t, "state.json", filepath.Base(p))

	cfg.Storage.Backend = "sqlite"
	p, err = cfg.StatePath()
	require.NoError(t, err)
	assert.Equal(t, "state.db", filepath.Base(p))

	cfg.Storage.Path = "/tmp/custom.db"
	p, err = cfg.StatePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", p)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, path, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.Provider.Model = "gpt-4o"
	require.NoError(t, SaveToPath(cfg, path))

	select {
	case got := <-reloaded:
		assert.Equal(t, "gpt-4o", got.Provider.Model)
	case <-ctx.Done():
		t.Fatal("watch did not observe the config change")
	}
	cancel()
	<-done
}

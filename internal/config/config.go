// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for loom.
//
// Configuration lives in a single TOML file at ~/.loom/config.toml, with
// built-in defaults and environment variable overrides. The file is written
// atomically with owner-only permissions because it may carry the API key.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete loom configuration.
type Config struct {
	Version string `toml:"version"`

	// Provider is the completion service connection.
	Provider ProviderConfig `toml:"provider"`

	// Defaults are the sampling parameters applied to new sessions.
	Defaults DefaultsConfig `toml:"defaults"`

	// Storage selects where session state is persisted.
	Storage StorageConfig `toml:"storage"`

	// Share is the share service connection.
	Share ShareConfig `toml:"share"`

	// Server configures the local HTTP API.
	Server ServerConfig `toml:"server"`
}

// ProviderConfig contains completion service configuration.
type ProviderConfig struct {
	// BaseURL is the completion service endpoint.
	BaseURL string `toml:"base_url"`
	// APIKey authenticates against the completion service.
	APIKey string `toml:"api_key"`
	// Name is the provider label stored on new sessions.
	Name string `toml:"name"`
	// Model is the default model for new sessions.
	Model string `toml:"model"`
	// SchemaLegacy selects the legacy wire encoding for tool-call arguments.
	SchemaLegacy bool `toml:"schema_legacy"`
}

// DefaultsConfig contains default sampling parameters. Zero values mean
// "unset": they are not sent to the service.
type DefaultsConfig struct {
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	TopP        float64 `toml:"top_p"`
	// SystemPrompt is synthesized into new sessions when set.
	SystemPrompt string `toml:"system_prompt"`
	// Stream requests chunked responses in the chat REPL.
	Stream bool `toml:"stream"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `toml:"backend"`
	// Path is the state file or database location (empty = default under
	// the config directory).
	Path string `toml:"path"`
}

// ShareConfig contains share service configuration.
type ShareConfig struct {
	// Endpoint is the share service URL. Empty disables sharing.
	Endpoint string `toml:"endpoint"`
	// IncludeSystem publishes system messages in shared sessions.
	IncludeSystem bool `toml:"include_system"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Must resolve to localhost.
	Addr string `toml:"addr"`
	// RateLimit is the sustained requests-per-second budget.
	RateLimit float64 `toml:"rate_limit"`
	// RateBurst is the token-bucket burst size.
	RateBurst int `toml:"rate_burst"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Provider: ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			Name:    "openai",
			Model:   "gpt-4o-mini",
		},
		Defaults: DefaultsConfig{
			Stream: true,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:7357",
			RateLimit: 10,
			RateBurst: 20,
		},
	}
}

// ModelConfig builds the per-session model configuration from the provider
// and defaults sections.
func (c *Config) ModelConfig() model.ModelConfig {
	cfg := model.ModelConfig{
		Provider: c.Provider.Name,
		Model:    c.Provider.Model,
	}
	if c.Defaults.Temperature != 0 {
		cfg.Temperature = model.Float64Ptr(c.Defaults.Temperature)
	}
	if c.Defaults.MaxTokens != 0 {
		cfg.MaxTokens = model.IntPtr(c.Defaults.MaxTokens)
	}
	if c.Defaults.TopP != 0 {
		cfg.TopP = model.Float64Ptr(c.Defaults.TopP)
	}
	return cfg
}

// StatePath returns the configured persistence path, or the default location
// under the config directory for the selected backend.
func (c *Config) StatePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == "sqlite" {
		return filepath.Join(dir, "state.db"), nil
	}
	return filepath.Join(dir, "state.json"), nil
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the loom configuration directory (~/.loom).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".loom"), nil
}

// Path returns the configuration file path (~/.loom/config.toml).
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir creates the configuration directory with owner-only permissions.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default path, falling back to the
// built-in defaults when no file exists, and applies environment overrides.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from an explicit path. A missing file
// is not an error: defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variables on top of the loaded
// configuration. Environment always wins over the file.
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("LOOM_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if base := os.Getenv("LOOM_BASE_URL"); base != "" {
		c.Provider.BaseURL = base
	}
	if m := os.Getenv("LOOM_MODEL"); m != "" {
		c.Provider.Model = m
	}
	if endpoint := os.Getenv("LOOM_SHARE_URL"); endpoint != "" {
		c.Share.Endpoint = endpoint
	}
	if backend := os.Getenv("LOOM_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if addr := os.Getenv("LOOM_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if stream := os.Getenv("LOOM_STREAM"); stream != "" {
		if v, err := strconv.ParseBool(stream); err == nil {
			c.Defaults.Stream = v
		}
	}
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path atomically.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return err
	}
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to an explicit path atomically with
// owner-only permissions.
func SaveToPath(cfg *Config, path string) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.BaseURL != "" {
		if u, err := url.Parse(c.Provider.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{"provider.base_url", "must be an http(s) URL"})
		}
	} else {
		errs = append(errs, ValidationError{"provider.base_url", "must not be empty"})
	}

	if c.Provider.Model == "" {
		errs = append(errs, ValidationError{"provider.model", "must not be empty"})
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, ValidationError{"storage.backend", `must be "file" or "sqlite"`})
	}

	if c.Share.Endpoint != "" {
		if u, err := url.Parse(c.Share.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{"share.endpoint", "must be an http(s) URL"})
		}
	}

	if host, _, found := strings.Cut(c.Server.Addr, ":"); !found {
		errs = append(errs, ValidationError{"server.addr", "must be host:port"})
	} else if host != "127.0.0.1" && host != "localhost" && host != "::1" && host != "" {
		errs = append(errs, ValidationError{"server.addr", "must bind to localhost"})
	}

	if c.Server.RateLimit <= 0 {
		errs = append(errs, ValidationError{"server.rate_limit", "must be positive"})
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

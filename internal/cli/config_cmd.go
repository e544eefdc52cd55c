// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/loomchat/loom/internal/config"
)

// =============================================================================
// CONFIG COMMANDS
// =============================================================================

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the loom configuration",
	}
	cmd.AddCommand(
		newConfigGetCmd(configPath),
		newConfigSetCmd(configPath),
		newConfigSetKeyCmd(configPath),
	)
	return cmd
}

func loadConfigAt(configPath *string) (*config.Config, string, error) {
	path := *configPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.LoadFromPath(path)
	return cfg, path, err
}

func newConfigGetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print the configuration, or a single key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfigAt(configPath)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				value, err := configValue(cfg, args[0])
				if err != nil {
					return err
				}
				fmt.Println(value)
				return nil
			}

			fmt.Println(DimStyle.Render("config: " + path))
			fmt.Printf("provider.base_url   = %s\n", cfg.Provider.BaseURL)
			fmt.Printf("provider.api_key    = %s\n", redactKey(cfg.Provider.APIKey))
			fmt.Printf("provider.model      = %s\n", cfg.Provider.Model)
			fmt.Printf("defaults.temperature = %v\n", cfg.Defaults.Temperature)
			fmt.Printf("defaults.max_tokens  = %d\n", cfg.Defaults.MaxTokens)
			fmt.Printf("defaults.stream      = %v\n", cfg.Defaults.Stream)
			fmt.Printf("storage.backend     = %s\n", cfg.Storage.Backend)
			fmt.Printf("share.endpoint      = %s\n", cfg.Share.Endpoint)
			fmt.Printf("server.addr         = %s\n", cfg.Server.Addr)
			return nil
		},
	}
}

func newConfigSetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration key and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfigAt(configPath)
			if err != nil {
				return err
			}
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveToPath(cfg, path); err != nil {
				return err
			}
			fmt.Printf("set %s\n", args[0])
			return nil
		},
	}
}

func newConfigSetKeyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Set the completion service API key (read without echo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfigAt(configPath)
			if err != nil {
				return err
			}

			fmt.Print("API key: ")
			key, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read key: %w", err)
			}
			trimmed := strings.TrimSpace(string(key))
			if trimmed == "" {
				return fmt.Errorf("empty key")
			}

			cfg.Provider.APIKey = trimmed
			if err := config.SaveToPath(cfg, path); err != nil {
				return err
			}
			fmt.Println("API key saved")
			return nil
		},
	}
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// configValue reads a dotted key. The API key is always redacted on read.
func configValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "provider.base_url":
		return cfg.Provider.BaseURL, nil
	case "provider.api_key":
		return redactKey(cfg.Provider.APIKey), nil
	case "provider.model":
		return cfg.Provider.Model, nil
	case "provider.name":
		return cfg.Provider.Name, nil
	case "defaults.temperature":
		return strconv.FormatFloat(cfg.Defaults.Temperature, 'g', -1, 64), nil
	case "defaults.max_tokens":
		return strconv.Itoa(cfg.Defaults.MaxTokens), nil
	case "defaults.top_p":
		return strconv.FormatFloat(cfg.Defaults.TopP, 'g', -1, 64), nil
	case "defaults.system_prompt":
		return cfg.Defaults.SystemPrompt, nil
	case "defaults.stream":
		return strconv.FormatBool(cfg.Defaults.Stream), nil
	case "storage.backend":
		return cfg.Storage.Backend, nil
	case "storage.path":
		return cfg.Storage.Path, nil
	case "share.endpoint":
		return cfg.Share.Endpoint, nil
	case "server.addr":
		return cfg.Server.Addr, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// setConfigValue writes a dotted key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "provider.base_url":
		cfg.Provider.BaseURL = value
	case "provider.model":
		cfg.Provider.Model = value
	case "provider.name":
		cfg.Provider.Name = value
	case "defaults.temperature":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature: %w", err)
		}
		cfg.Defaults.Temperature = v
	case "defaults.max_tokens":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_tokens: %w", err)
		}
		cfg.Defaults.MaxTokens = v
	case "defaults.top_p":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid top_p: %w", err)
		}
		cfg.Defaults.TopP = v
	case "defaults.system_prompt":
		cfg.Defaults.SystemPrompt = value
	case "defaults.stream":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid stream: %w", err)
		}
		cfg.Defaults.Stream = v
	case "storage.backend":
		cfg.Storage.Backend = value
	case "storage.path":
		cfg.Storage.Path = value
	case "share.endpoint":
		cfg.Share.Endpoint = value
	case "server.addr":
		cfg.Server.Addr = value
	case "provider.api_key":
		return fmt.Errorf("use 'loom config set-key' to set the API key")
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// redactKey masks all but the last four characters of an API key.
func redactKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

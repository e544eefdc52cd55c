// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the loom command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/completion"
	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/logging"
	"github.com/loomchat/loom/internal/persist"
	"github.com/loomchat/loom/internal/share"
	"github.com/loomchat/loom/internal/store"
)

// =============================================================================
// APP WIRING
// =============================================================================

// App bundles the wired-up engine and its collaborators for command use.
type App struct {
	Config *config.Config
	Engine *store.Store
	State  *persist.Store
	Share  *share.Client

	configPath string
}

// newApp loads configuration, opens the persistence backend, rehydrates the
// engine and hooks up save-on-change.
func newApp(configPath string) (*App, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
		configPath, _ = config.Path()
	}
	if err != nil {
		return nil, err
	}

	client := completion.NewClient(cfg.Provider.APIKey).WithBaseURL(cfg.Provider.BaseURL)
	if cfg.Provider.SchemaLegacy {
		client.WithSchema(completion.SchemaLegacy)
	}

	statePath, err := cfg.StatePath()
	if err != nil {
		return nil, err
	}
	var backend persist.Backend
	if cfg.Storage.Backend == "sqlite" {
		backend, err = persist.NewSQLiteBackend(statePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open state database: %w", err)
		}
	} else {
		backend = persist.NewFileBackend(statePath)
	}
	state := persist.NewStore(backend)

	engine := store.New(&echoStreamer{client})
	engine.SetDefaultModelConfig(cfg.ModelConfig())

	if snap, ok, err := state.Load(); err != nil {
		logging.Warnf("cli: could not load saved state: %v", err)
	} else if ok {
		engine.Hydrate(snap)
	}
	engine.OnChange(persist.NewPersister(state, engine).Persist)

	return &App{
		Config:     cfg,
		Engine:     engine,
		State:      state,
		Share:      share.NewClient(cfg.Share.Endpoint),
		configPath: configPath,
	}, nil
}

// Close releases the persistence backend.
func (a *App) Close() error {
	return a.State.Close()
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the loom command tree.
func NewRootCmd(version string) *cobra.Command {
	var verbose bool
	var configPath string

	root := &cobra.Command{
		Use:     "loom",
		Short:   "loom is a chat session engine for LLM conversations",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetVerbose(verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.loom/config.toml)")

	app := func() (*App, error) { return newApp(configPath) }

	root.AddCommand(
		newChatCmd(app),
		newSessionsCmd(app),
		newServeCmd(app, &configPath),
		newConfigCmd(&configPath),
	)
	return root
}

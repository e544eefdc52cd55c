// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/logging"
	"github.com/loomchat/loom/internal/server"
)

func newServeCmd(app func() (*App, error), configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.Config.Server.Addr
			}
			srv := server.New(a.Engine, a.Share, server.Options{
				Addr:      addr,
				RateLimit: a.Config.Server.RateLimit,
				RateBurst: a.Config.Server.RateBurst,
				Stream:    false,
			})

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// Hot-reload model defaults while serving.
			watchPath := *configPath
			if watchPath == "" {
				watchPath, _ = config.Path()
			}
			go func() {
				err := config.Watch(ctx, watchPath, func(cfg *config.Config) {
					a.Engine.SetDefaultModelConfig(cfg.ModelConfig())
				})
				if err != nil && ctx.Err() == nil {
					logging.Warnf("cli: config watch stopped: %v", err)
				}
			}()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			fmt.Println("loom API listening on " + addr)
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

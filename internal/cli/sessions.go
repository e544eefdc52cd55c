// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/export"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/share"
	"github.com/loomchat/loom/internal/util"
)

func buildSharePayload(a *App, sess *model.Session) share.Payload {
	return share.BuildPayload(sess, a.Config.Share.IncludeSystem)
}

// =============================================================================
// SESSIONS COMMANDS
// =============================================================================

func newSessionsCmd(app func() (*App, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(app),
		newSessionsShowCmd(app),
		newSessionsDeleteCmd(app),
		newSessionsClearCmd(app),
		newSessionsExportCmd(app),
		newSessionsShareCmd(app),
	)
	return cmd
}

func newSessionsListCmd(app func() (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			metas := a.Engine.SessionMetas()
			if len(metas) == 0 {
				fmt.Println(DimStyle.Render("no sessions"))
				return nil
			}

			fmt.Println(TitleStyle.Render("Sessions"))
			current := a.Engine.CurrentSessionID()
			for _, m := range metas {
				marker := "  "
				if m.ID == current {
					marker = CurrentStyle.Render("* ")
				}
				fmt.Printf("%s%-22s %-32s %4d msgs  %-14s %s\n",
					marker,
					m.ID,
					util.TruncateWidth(m.Title, 32),
					m.MessageCount,
					util.TruncateWidth(m.Model, 14),
					DimStyle.Render(m.UpdatedAt.Format("2006-01-02 15:04")),
				)
			}
			fmt.Printf("\n%s\n", DimStyle.Render(fmt.Sprintf(
				"total: %d tokens, $%.4f", a.Engine.TotalTokens(), a.Engine.TotalCost())))
			return nil
		},
	}
}

func newSessionsShowCmd(app func() (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print a session transcript (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := resolveSession(a, args)
			if err != nil {
				return err
			}

			fmt.Println(TitleStyle.Render(sess.DisplayTitle()))
			fmt.Println(DimStyle.Render(fmt.Sprintf("%s | %s | %d messages",
				sess.ID, sess.Config.Model, sess.MessageCount())))
			fmt.Println()

			for i, msg := range sess.Messages {
				label := msg.Role.String()
				switch msg.Role {
				case model.RoleUser:
					label = UserStyle.Render("you")
				case model.RoleAssistant:
					label = AssistantStyle.Render("assistant")
				case model.RoleSystem, model.RoleTool:
					label = DimStyle.Render(label)
				}
				fmt.Printf("[%d] %s\n", i+1, label)
				for _, tc := range msg.ToolCalls {
					fmt.Println(DimStyle.Render(fmt.Sprintf("    tool call %s(%s)", tc.Name, tc.Arguments)))
				}
				if msg.Content != "" {
					fmt.Println(indent(msg.Content, "    "))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd(app func() (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Engine.Session(args[0]) == nil {
				return fmt.Errorf("no session %q", args[0])
			}
			a.Engine.DeleteSession(args[0])
			fmt.Println("deleted " + args[0])
			if current := a.Engine.CurrentSessionID(); current != "" {
				fmt.Println(DimStyle.Render("current session is now " + current))
			}
			return nil
		},
	}
}

func newSessionsClearCmd(app func() (*App, error)) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all sessions and reset usage totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			n := len(a.Engine.SessionMetas())
			a.Engine.ClearAllSessions()
			fmt.Printf("cleared %d sessions\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all sessions")
	return cmd
}

func newSessionsExportCmd(app func() (*App, error)) *cobra.Command {
	var format string
	var outDir string
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a session to markdown, json or yaml (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := resolveSession(a, args)
			if err != nil {
				return err
			}
			exporter, err := export.ForFormat(format)
			if err != nil {
				return err
			}
			path, err := export.ToFile(sess, exporter, outDir)
			if err != nil {
				return err
			}
			fmt.Println("exported to " + path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: markdown, json or yaml")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

func newSessionsShareCmd(app func() (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "share [id]",
		Short: "Publish a session to the share service (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.Share.IsConfigured() {
				return errors.New("no share endpoint configured (share.endpoint)")
			}
			sess, err := resolveSession(a, args)
			if err != nil {
				return err
			}
			result, err := a.Share.Share(context.Background(), buildSharePayload(a, sess))
			if err != nil {
				return err
			}
			fmt.Println(result.URL)
			return nil
		},
	}
}

// resolveSession returns the session named by args[0], or the current one.
func resolveSession(a *App, args []string) (*model.Session, error) {
	if len(args) == 1 {
		sess := a.Engine.Session(args[0])
		if sess == nil {
			return nil, fmt.Errorf("no session %q", args[0])
		}
		return sess, nil
	}
	sess := a.Engine.CurrentSession()
	if sess == nil {
		return nil, errors.New("no current session")
	}
	return sess, nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

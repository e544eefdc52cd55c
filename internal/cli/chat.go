// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/completion"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/store"
	"github.com/loomchat/loom/internal/util"
)

// echoStreamer wraps the completion client so that stream chunks are printed
// as they arrive, in addition to flowing into the store's streaming overlay.
type echoStreamer struct {
	*completion.Client
}

func (e *echoStreamer) ChatStream(ctx context.Context, req completion.ChatRequest, cb completion.StreamCallback) (*completion.ChatResponse, error) {
	return e.Client.ChatStream(ctx, req, func(chunk completion.StreamChunk) {
		fmt.Print(chunk.Content())
		cb(chunk)
	})
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCmd(app func() (*App, error)) *cobra.Command {
	var systemPrompt string
	var noStream bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat interactively, or send a single message",
		Long: `Chat starts an interactive session against the current session.

Slash commands inside the REPL:
  /new [title]     start a new session
  /sessions        list sessions
  /switch <id>     switch to another session
  /edit <n>        edit message n and replay from there
  /regen           regenerate the last assistant reply
  /share           publish the current session
  /quit            exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			defer a.Close()

			if systemPrompt == "" {
				systemPrompt = a.Config.Defaults.SystemPrompt
			}
			stream := a.Config.Defaults.Stream && !noStream

			// One-shot mode: send and exit.
			if len(args) > 0 {
				sendAndPrint(a, strings.Join(args, " "), systemPrompt, stream)
				if a.Engine.Err() != "" {
					return errors.New(a.Engine.Err())
				}
				return nil
			}

			return runRepl(a, systemPrompt, stream)
		},
	}
	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt for new sessions")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "disable streaming output")
	return cmd
}

// sendAndPrint runs one pipeline invocation and prints the result.
func sendAndPrint(a *App, content, systemPrompt string, stream bool) {
	a.Engine.SendMessage(context.Background(), content, store.SendOptions{
		SystemPrompt: systemPrompt,
		Stream:       stream,
	})

	if errMsg := a.Engine.Err(); errMsg != "" {
		fmt.Println(ErrorStyle.Render("error: " + errMsg))
		return
	}
	if stream {
		// Content was already echoed chunk by chunk.
		fmt.Println()
		return
	}
	msgs := a.Engine.Messages()
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == model.RoleAssistant {
		fmt.Println(msgs[len(msgs)-1].Content)
	}
}

// =============================================================================
// REPL
// =============================================================================

func runRepl(a *App, systemPrompt string, stream bool) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if sess := a.Engine.CurrentSession(); sess != nil {
		fmt.Println(DimStyle.Render(fmt.Sprintf("continuing %q (%d messages); /help for commands", sess.DisplayTitle(), sess.MessageCount())))
	} else {
		fmt.Println(DimStyle.Render("new conversation; /help for commands"))
	}

	for {
		input, err := line.Prompt(promptLabel(a))
		if err != nil {
			if err == liner.ErrPromptAborted || err.Error() == "EOF" {
				fmt.Println()
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := runSlashCommand(a, input); quit {
				return nil
			}
			continue
		}

		fmt.Print(AssistantStyle.Render("assistant") + " ")
		if !stream {
			fmt.Println()
		}
		sendAndPrint(a, input, systemPrompt, stream)
	}
}

func promptLabel(a *App) string {
	return UserStyle.Render("you") + " > "
}

// runSlashCommand dispatches a REPL slash command. Returns true to exit.
func runSlashCommand(a *App, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return true

	case "/help":
		fmt.Println(DimStyle.Render("/new [title], /sessions, /switch <id>, /edit <n>, /regen, /share, /quit"))

	case "/new":
		title := strings.Join(args, " ")
		sess := a.Engine.CreateSession(title, nil, a.Config.Defaults.SystemPrompt)
		fmt.Println(DimStyle.Render("started " + sess.ID))

	case "/sessions":
		printSessionList(a)

	case "/switch":
		if len(args) != 1 {
			fmt.Println(ErrorStyle.Render("usage: /switch <id>"))
			return false
		}
		if a.Engine.Session(args[0]) == nil {
			fmt.Println(ErrorStyle.Render("no such session"))
			return false
		}
		a.Engine.SetCurrentSession(args[0])
		fmt.Println(DimStyle.Render("switched to " + args[0]))

	case "/edit":
		runEditCommand(a, args)

	case "/regen":
		msgs := a.Engine.Messages()
		if len(msgs) == 0 {
			fmt.Println(ErrorStyle.Render("nothing to regenerate"))
			return false
		}
		fmt.Print(AssistantStyle.Render("assistant") + " ")
		a.Engine.RegenerateMessage(context.Background(), msgs[len(msgs)-1].ID)
		finishPipelineOutput(a)

	case "/share":
		runShareCommand(a)

	default:
		fmt.Println(ErrorStyle.Render("unknown command " + cmd + "; /help for commands"))
	}
	return false
}

// runEditCommand edits message number n (1-based over the visible history)
// and replays the conversation from there.
func runEditCommand(a *App, args []string) {
	msgs := a.Engine.Messages()
	if len(args) != 1 {
		fmt.Println(ErrorStyle.Render("usage: /edit <n>"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(msgs) {
		fmt.Println(ErrorStyle.Render("message number out of range"))
		return
	}
	target := msgs[n-1]

	line := liner.NewLiner()
	defer line.Close()
	edited, err := line.PromptWithSuggestion("edit > ", target.Content, -1)
	if err != nil {
		fmt.Println()
		return
	}

	a.Engine.StartEditingMessage(target.ID)
	a.Engine.SetEditingDraft(edited)
	if target.Role == model.RoleUser {
		fmt.Print(AssistantStyle.Render("assistant") + " ")
	}
	a.Engine.SaveEditedMessage(context.Background())
	finishPipelineOutput(a)
}

func runShareCommand(a *App) {
	if !a.Share.IsConfigured() {
		fmt.Println(ErrorStyle.Render("no share endpoint configured (share.endpoint)"))
		return
	}
	sess := a.Engine.CurrentSession()
	if sess == nil {
		fmt.Println(ErrorStyle.Render("nothing to share"))
		return
	}
	result, err := a.Share.Share(context.Background(), buildSharePayload(a, sess))
	if err != nil {
		fmt.Println(ErrorStyle.Render("share failed: " + err.Error()))
		return
	}
	fmt.Println("shared: " + result.URL)
}

// finishPipelineOutput prints the trailing state after an in-REPL pipeline
// run: the newline after streamed output, or the error.
func finishPipelineOutput(a *App) {
	if errMsg := a.Engine.Err(); errMsg != "" {
		fmt.Println(ErrorStyle.Render("error: " + errMsg))
		return
	}
	fmt.Println()
}

func printSessionList(a *App) {
	metas := a.Engine.SessionMetas()
	if len(metas) == 0 {
		fmt.Println(DimStyle.Render("no sessions"))
		return
	}
	current := a.Engine.CurrentSessionID()
	for _, m := range metas {
		marker := "  "
		if m.ID == current {
			marker = CurrentStyle.Render("* ")
		}
		fmt.Printf("%s%s  %-30s %3d msgs  %s\n",
			marker, m.ID, util.TruncateWidth(m.Title, 30), m.MessageCount,
			DimStyle.Render(m.UpdatedAt.Format("2006-01-02 15:04")))
	}
}

// printFatal prints a fatal error and exits. Used by main.
func printFatal(err error) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("loom: "+err.Error()))
	os.Exit(1)
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		printFatal(err)
	}
}

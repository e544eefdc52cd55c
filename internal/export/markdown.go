// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/loomchat/loom/internal/model"
)

// MarkdownExporter renders a session as a human-readable Markdown document
// with a metadata header.
type MarkdownExporter struct {
	// IncludeSystem renders system messages too. Off by default: they are
	// usually boilerplate instructions.
	IncludeSystem bool
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(sess *model.Session) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sess.DisplayTitle())
	fmt.Fprintf(&b, "- Model: %s\n", sess.Config.Model)
	fmt.Fprintf(&b, "- Created: %s\n", sess.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Messages: %d\n\n", sess.MessageCount())
	b.WriteString("---\n\n")

	for _, msg := range sess.Messages {
		switch msg.Role {
		case model.RoleSystem:
			if !e.IncludeSystem {
				continue
			}
			fmt.Fprintf(&b, "## System\n\n%s\n\n", msg.Content)
		case model.RoleUser:
			fmt.Fprintf(&b, "## You\n\n%s\n\n", msg.Content)
		case model.RoleAssistant:
			fmt.Fprintf(&b, "## Assistant\n\n")
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(&b, "> tool call: `%s(%s)`\n\n", tc.Name, tc.Arguments)
			}
			if msg.Content != "" {
				fmt.Fprintf(&b, "%s\n\n", msg.Content)
			}
		case model.RoleTool:
			fmt.Fprintf(&b, "> tool result (%s):\n>\n", msg.ToolCallID)
			for _, line := range strings.Split(msg.Content, "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
			b.WriteString("\n")
		}
	}

	return []byte(b.String()), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// loom is a chat session engine for LLM conversations.
package main

import (
	"github.com/loomchat/loom/internal/cli"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

func main() {
	cli.Execute(Version)
}

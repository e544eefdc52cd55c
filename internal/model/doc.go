// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Session: one conversation thread with its own message history,
//     model configuration, and optional system prompt
//   - Message: a single turn (system, user, assistant, or tool), optionally
//     carrying tool-call descriptors, token usage, and cost
//   - ModelConfig: provider/model selection plus optional sampling parameters
//   - Role: message role enumeration
//
// # Usage
//
// Create a session and append a message:
//
//	sess := model.NewSession(model.DefaultModelConfig())
//	sess.AddMessage(model.NewUserMessage("Hello!"))
package model

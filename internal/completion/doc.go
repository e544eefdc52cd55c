// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion implements the client for the external completion
// service: an OpenAI-compatible chat-completions HTTP API that may execute
// tools server-side and report token usage and cost.
//
// The client owns the transport concerns the session store deliberately does
// not: retries with exponential backoff for transient failures, response
// size limits, SSE streaming, and the wire-schema differences between the
// legacy (structured tool arguments) and current (string tool arguments)
// request formats.
package completion

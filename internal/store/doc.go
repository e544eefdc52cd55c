// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the chat session store: an ordered collection of
// sessions with a "current session" pointer, the message pipeline that sends
// history to the completion service and merges the reply back, in-place
// editing with history truncation, regeneration, and a transient streaming
// overlay.
//
// # Design
//
// The sessions slice is the single source of truth. The flattened view of
// the active session's messages is derived on demand by Messages(); there is
// no second array to keep in sync. All actions serialize on one mutex, and
// every pipeline invocation is tagged with a per-session epoch: a completion
// that resolves after a newer request has advanced the same session is
// discarded instead of corrupting newer state.
//
// Failures of the completion service never escape an action. They are
// recorded in the store's error field for the caller to observe; messages
// appended before the failure (the user's own message in particular) are
// kept, with no rollback.
package store

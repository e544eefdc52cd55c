// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persist stores a versioned snapshot of the session store's durable
// subset: sessions, the current session ID, the default model configuration,
// and cumulative usage totals. Transient flags (sending, error, streaming,
// edit buffers) are excluded by construction and reset on rehydration.
//
// Snapshots are wrapped in an envelope carrying a schema version integer.
// On load, registered migrations run the envelope forward one version at a
// time before the snapshot is decoded; blobs from a future version are
// rejected rather than guessed at.
//
// Two backends are provided: a single JSON file written atomically, and a
// SQLite database holding the blob in a key/value table under a fixed key.
package persist

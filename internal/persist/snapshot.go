// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loomchat/loom/internal/model"
)

// SchemaVersion is the current snapshot schema version.
const SchemaVersion = 1

// ErrFutureVersion is returned when a persisted blob was written by a newer
// schema than this build understands.
var ErrFutureVersion = errors.New("persisted state has a newer schema version")

// Snapshot is the durable projection of store state.
type Snapshot struct {
	Sessions           []*model.Session  `json:"sessions"`
	CurrentSessionID   string            `json:"current_session_id"`
	DefaultModelConfig model.ModelConfig `json:"default_model_config"`
	TotalTokens        int               `json:"total_tokens_used"`
	TotalCost          float64           `json:"total_cost"`
}

// envelope wraps a snapshot with its schema version.
type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Encode serializes a snapshot into a versioned blob.
func Encode(snap Snapshot) ([]byte, error) {
	state, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return json.MarshalIndent(envelope{Version: SchemaVersion, State: state}, "", "  ")
}

// Decode parses a versioned blob, migrating older versions forward.
func Decode(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse persisted state: %w", err)
	}

	if env.Version > SchemaVersion {
		return Snapshot{}, fmt.Errorf("%w: got %d, supported %d", ErrFutureVersion, env.Version, SchemaVersion)
	}

	state := env.State
	for v := env.Version; v < SchemaVersion; v++ {
		migrated, err := migrate(state, v)
		if err != nil {
			return Snapshot{}, fmt.Errorf("migration %d->%d failed: %w", v, v+1, err)
		}
		state = migrated
	}

	var snap Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

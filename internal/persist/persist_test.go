// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomchat/loom/internal/model"
)

func sampleSnapshot() Snapshot {
	sess := model.NewSession(model.DefaultModelConfig())
	sess.AddMessage(model.NewUserMessage("hello"))
	sess.AddMessage(model.NewAssistantMessage("hi"))
	return Snapshot{
		Sessions:           []*model.Session{sess},
		CurrentSessionID:   sess.ID,
		DefaultModelConfig: model.DefaultModelConfig(),
		TotalTokens:        123,
		TotalCost:          0.0042,
	}
}

// =============================================================================
// CODEC TESTS
// =============================================================================

func TestEncodeDecode_RoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	data, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, got.Sessions, 1)
	assert.Equal(t, snap.Sessions[0].ID, got.Sessions[0].ID)
	assert.Equal(t, 2, got.Sessions[0].MessageCount())
	assert.Equal(t, snap.CurrentSessionID, got.CurrentSessionID)
	assert.Equal(t, snap.DefaultModelConfig.Model, got.DefaultModelConfig.Model)
	assert.Equal(t, 123, got.TotalTokens)
	assert.InDelta(t, 0.0042, got.TotalCost, 1e-12)
}

func TestDecode_MigratesVersionZero(t *testing.T) {
	state, err := json.Marshal(sampleSnapshot())
	require.NoError(t, err)

	blob, err := json.Marshal(map[string]any{
		"version": 0,
		"state":   json.RawMessage(state),
	})
	require.NoError(t, err)

	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Len(t, got.Sessions, 1)
	assert.Equal(t, 123, got.TotalTokens)
}

func TestDecode_RejectsFutureVersion(t *testing.T) {
	blob, _ := json.Marshal(map[string]any{
		"version": SchemaVersion + 1,
		"state":   json.RawMessage(`{}`),
	})

	_, err := Decode(blob)
	assert.ErrorIs(t, err, ErrFutureVersion)
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestStore_Backends(t *testing.T) {
	dir := t.TempDir()

	sqliteBackend, err := NewSQLiteBackend(filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	backends := map[string]Backend{
		"file":   NewFileBackend(filepath.Join(dir, "state.json")),
		"sqlite": sqliteBackend,
	}

	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend)
			defer store.Close()

			// Empty backend reports no snapshot.
			_, ok, err := store.Load()
			require.NoError(t, err)
			assert.False(t, ok)

			snap := sampleSnapshot()
			require.NoError(t, store.Save(snap))

			got, ok, err := store.Load()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, snap.CurrentSessionID, got.CurrentSessionID)
			assert.Equal(t, snap.TotalTokens, got.TotalTokens)

			// Saving again replaces the blob.
			snap.TotalTokens = 999
			require.NoError(t, store.Save(snap))
			got, _, err = store.Load()
			require.NoError(t, err)
			assert.Equal(t, 999, got.TotalTokens)
		})
	}
}

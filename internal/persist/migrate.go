// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"encoding/json"
	"fmt"
)

// MigrationFunc transforms a raw state blob from one schema version to the
// next. It receives the state as persisted and must return a blob valid for
// version+1.
type MigrationFunc func(raw json.RawMessage) (json.RawMessage, error)

// migrations maps a source version to the function lifting it one version.
var migrations = map[int]MigrationFunc{
	// 0 -> 1: the version-0 layout matches version 1; nothing to transform
	// yet. Registered so the migration path is exercised end to end.
	0: func(raw json.RawMessage) (json.RawMessage, error) {
		return raw, nil
	},
}

// migrate lifts raw state from the given version to version+1.
func migrate(raw json.RawMessage, from int) (json.RawMessage, error) {
	fn, ok := migrations[from]
	if !ok {
		return nil, fmt.Errorf("no migration registered for version %d", from)
	}
	return fn(raw)
}

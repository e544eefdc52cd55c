// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"fmt"
	"os"

	"github.com/loomchat/loom/internal/util"
)

// FileBackend persists the snapshot blob as a single JSON document. Writes
// are atomic with fsync, so a crash mid-save leaves the previous snapshot
// intact.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Save implements Backend.
func (f *FileBackend) Save(data []byte) error {
	if err := util.AtomicWriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// Load implements Backend.
func (f *FileBackend) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read persisted state: %w", err)
	}
	return data, true, nil
}

// Close implements Backend. File backends hold no resources.
func (f *FileBackend) Close() error {
	return nil
}

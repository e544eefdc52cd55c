// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

// Backend stores and retrieves the serialized snapshot blob.
type Backend interface {
	// Save persists the blob, replacing any previous one.
	Save(data []byte) error

	// Load retrieves the blob. The second return is false when nothing has
	// been persisted yet.
	Load() ([]byte, bool, error)

	// Close releases backend resources.
	Close() error
}

// Store couples a backend with the snapshot codec.
type Store struct {
	backend Backend
}

// NewStore creates a snapshot store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Save encodes and persists a snapshot.
func (s *Store) Save(snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return s.backend.Save(data)
}

// Load retrieves and decodes the persisted snapshot. The second return is
// false when no snapshot exists.
func (s *Store) Load() (Snapshot, bool, error) {
	data, ok, err := s.backend.Load()
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	snap, err := Decode(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// stateKey is the fixed key the snapshot blob lives under.
const stateKey = "loom.state"

// SQLiteBackend persists the snapshot blob in a key/value table. The version
// is duplicated into its own column so the schema of an existing database
// can be inspected without parsing the blob.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS state (
	key        TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Save implements Backend.
func (b *SQLiteBackend) Save(data []byte) error {
	// Pull the version out of the envelope for the version column.
	var env struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid snapshot blob: %w", err)
	}

	const upsert = `
INSERT INTO state (key, version, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET version = excluded.version,
	data = excluded.data, updated_at = excluded.updated_at;`
	if _, err := b.db.Exec(upsert, stateKey, env.Version, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// Load implements Backend.
func (b *SQLiteBackend) Load() ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT data FROM state WHERE key = ?`, stateKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read persisted state: %w", err)
	}
	return data, true, nil
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

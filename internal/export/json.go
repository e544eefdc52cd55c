// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/loomchat/loom/internal/model"
)

// JSONExporter renders a session as an indented JSON document using the
// session's own persistence encoding.
type JSONExporter struct{}

// Export implements Exporter.
func (e *JSONExporter) Export(sess *model.Session) ([]byte, error) {
	return json.MarshalIndent(sess, "", "  ")
}

// FileExtension implements Exporter.
func (e *JSONExporter) FileExtension() string { return ".json" }

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomchat/loom/internal/model"
)

// YAMLExporter renders a session as a YAML document. The shape mirrors the
// JSON export but uses snake_case keys chosen for readability.
type YAMLExporter struct{}

type yamlSession struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	Model     string        `yaml:"model"`
	CreatedAt time.Time     `yaml:"created_at"`
	Messages  []yamlMessage `yaml:"messages"`
}

type yamlMessage struct {
	Role       string         `yaml:"role"`
	Content    string         `yaml:"content"`
	Timestamp  time.Time      `yaml:"timestamp"`
	ToolCalls  []yamlToolCall `yaml:"tool_calls,omitempty"`
	ToolCallID string         `yaml:"tool_call_id,omitempty"`
	Tokens     int            `yaml:"tokens,omitempty"`
	Cost       float64        `yaml:"cost,omitempty"`
}

type yamlToolCall struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

// Export implements Exporter.
func (e *YAMLExporter) Export(sess *model.Session) ([]byte, error) {
	doc := yamlSession{
		ID:        sess.ID,
		Title:     sess.DisplayTitle(),
		Model:     sess.Config.Model,
		CreatedAt: sess.CreatedAt,
	}
	for _, msg := range sess.Messages {
		ym := yamlMessage{
			Role:       msg.Role.String(),
			Content:    msg.Content,
			Timestamp:  msg.Timestamp,
			ToolCallID: msg.ToolCallID,
			Cost:       msg.Cost,
		}
		if msg.Usage != nil {
			ym.Tokens = msg.Usage.TotalTokens
		}
		for _, tc := range msg.ToolCalls {
			ym.ToolCalls = append(ym.ToolCalls, yamlToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		doc.Messages = append(doc.Messages, ym)
	}
	return yaml.Marshal(doc)
}

// FileExtension implements Exporter.
func (e *YAMLExporter) FileExtension() string { return ".yaml" }

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/loomchat/loom/internal/model"
)

func sampleSession() *model.Session {
	sess := model.NewSession(model.DefaultModelConfig())
	sess.AddMessage(model.NewSystemMessage("be helpful"))
	sess.AddMessage(model.NewUserMessage("what is 2+2?"))

	assistant := model.NewAssistantMessage("")
	assistant.ToolCalls = []model.ToolCall{{ID: "call_1", Name: "calc", Arguments: `{"expr":"2+2"}`}}
	sess.AddMessage(assistant)
	sess.AddMessage(model.NewToolMessage("call_1", "4"))
	sess.AddMessage(model.NewAssistantMessage("2+2 is 4."))
	return sess
}

func TestMarkdownExport(t *testing.T) {
	out, err := (&MarkdownExporter{}).Export(sampleSession())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "# what is 2+2?")
	assert.Contains(t, md, "## You")
	assert.Contains(t, md, "tool call: `calc({\"expr\":\"2+2\"})`")
	assert.Contains(t, md, "> tool result (call_1)")
	assert.Contains(t, md, "2+2 is 4.")
	assert.NotContains(t, md, "be helpful") // system excluded by default
}

func TestMarkdownExport_IncludeSystem(t *testing.T) {
	out, err := (&MarkdownExporter{IncludeSystem: true}).Export(sampleSession())
	require.NoError(t, err)
	assert.Contains(t, string(out), "be helpful")
}

func TestJSONExport_RoundTrips(t *testing.T) {
	sess := sampleSession()
	out, err := (&JSONExporter{}).Export(sess)
	require.NoError(t, err)

	var got model.Session
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, sess.ID, got.ID)
	assert.Len(t, got.Messages, 5)
}

func TestYAMLExport(t *testing.T) {
	out, err := (&YAMLExporter{}).Export(sampleSession())
	require.NoError(t, err)

	var doc struct {
		Title    string `yaml:"title"`
		Messages []struct {
			Role      string `yaml:"role"`
			ToolCalls []struct {
				Name string `yaml:"name"`
			} `yaml:"tool_calls"`
		} `yaml:"messages"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, "what is 2+2?", doc.Title)
	require.Len(t, doc.Messages, 5)
	assert.Equal(t, "calc", doc.Messages[2].ToolCalls[0].Name)
}

func TestForFormat(t *testing.T) {
	for _, format := range []string{"markdown", "md", "json", "yaml", "yml"} {
		_, err := ForFormat(format)
		assert.NoError(t, err, format)
	}
	_, err := ForFormat("pdf")
	assert.Error(t, err)
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := ToFile(sampleSession(), &MarkdownExporter{}, dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".md"))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "## You")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello_world"},
		{"what is 2+2?", "what_is_22"},
		{"", "untitled"},
		{"///", "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

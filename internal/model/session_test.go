// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewSession(t *testing.T) {
	sess := NewSession(DefaultModelConfig())

	if !strings.HasPrefix(sess.ID, "sess_") {
		t.Errorf("session ID = %q, want sess_ prefix", sess.ID)
	}
	if !sess.IsEmpty() {
		t.Error("new session should be empty")
	}
	if sess.Config.Model == "" {
		t.Error("session should carry a model config")
	}
}

func TestSession_AutoTitle(t *testing.T) {
	sess := NewSession(DefaultModelConfig())

	sess.AddMessage(NewSystemMessage("be helpful"))
	if sess.Title != "" {
		t.Errorf("system message should not set title, got %q", sess.Title)
	}

	sess.AddMessage(NewUserMessage("What is the airspeed velocity of an unladen swallow?"))
	if sess.Title == "" {
		t.Fatal("first user message should set title")
	}
	if len([]rune(sess.Title)) > 50 {
		t.Errorf("title should be truncated to 50 runes, got %d", len([]rune(sess.Title)))
	}

	// Title sticks once set.
	want := sess.Title
	sess.AddMessage(NewUserMessage("another message"))
	if sess.Title != want {
		t.Errorf("title changed from %q to %q", want, sess.Title)
	}
}

func TestSession_TruncateAfter(t *testing.T) {
	sess := NewSession(DefaultModelConfig())
	for i := 0; i < 5; i++ {
		sess.AddMessage(NewUserMessage("m"))
	}

	sess.TruncateAfter(2)
	if got := sess.MessageCount(); got != 3 {
		t.Errorf("MessageCount() after TruncateAfter(2) = %d, want 3", got)
	}

	// Truncating past the end is a no-op.
	sess.TruncateAfter(10)
	if got := sess.MessageCount(); got != 3 {
		t.Errorf("MessageCount() = %d, want 3", got)
	}

	// Negative index clears.
	sess.TruncateAfter(-1)
	if !sess.IsEmpty() {
		t.Error("TruncateAfter(-1) should clear all messages")
	}
}

func TestSession_LastUserIndexBefore(t *testing.T) {
	sess := NewSession(DefaultModelConfig())
	sess.AddMessage(NewSystemMessage("sys"))     // 0
	sess.AddMessage(NewUserMessage("first"))     // 1
	sess.AddMessage(NewAssistantMessage("hi"))   // 2
	sess.AddMessage(NewUserMessage("second"))    // 3
	sess.AddMessage(NewAssistantMessage("more")) // 4

	if got := sess.LastUserIndexBefore(4); got != 3 {
		t.Errorf("LastUserIndexBefore(4) = %d, want 3", got)
	}
	if got := sess.LastUserIndexBefore(2); got != 1 {
		t.Errorf("LastUserIndexBefore(2) = %d, want 1", got)
	}
	if got := sess.LastUserIndexBefore(0); got != -1 {
		t.Errorf("LastUserIndexBefore(0) = %d, want -1", got)
	}
}

func TestSession_Clone(t *testing.T) {
	sess := NewSession(DefaultModelConfig())
	sess.SystemPrompt = "be terse"
	msg := NewAssistantMessage("ok")
	msg.ToolCalls = []ToolCall{{ID: "call_1", Name: "search", Arguments: `{"q":"go"}`}}
	sess.AddMessage(msg)

	clone := sess.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages[0].ToolCalls[0].Name = "changed"

	if sess.Messages[0].Content != "ok" {
		t.Error("clone should not share message content")
	}
	if sess.Messages[0].ToolCalls[0].Name != "search" {
		t.Error("clone should not share tool calls")
	}
}

// =============================================================================
// TOOL PAIRING TESTS
// =============================================================================

func TestSession_PairToolResults(t *testing.T) {
	makeAssistant := func(ids ...string) *Message {
		msg := NewAssistantMessage("")
		for _, id := range ids {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: id, Name: "fn", Arguments: "{}"})
		}
		return msg
	}

	t.Run("matched by id", func(t *testing.T) {
		sess := NewSession(DefaultModelConfig())
		sess.AddMessage(makeAssistant("call_a", "call_b"))
		sess.AddMessage(NewToolMessage("call_b", "result b"))
		sess.AddMessage(NewToolMessage("call_a", "result a"))

		pairings := sess.PairToolResults()
		if len(pairings) != 2 {
			t.Fatalf("got %d pairings, want 2", len(pairings))
		}
		if pairings[0].ToolCallID != "call_b" || pairings[0].Positional {
			t.Errorf("pairing[0] = %+v, want exact match on call_b", pairings[0])
		}
		if pairings[1].ToolCallID != "call_a" || pairings[1].Positional {
			t.Errorf("pairing[1] = %+v, want exact match on call_a", pairings[1])
		}
	})

	t.Run("positional fallback", func(t *testing.T) {
		sess := NewSession(DefaultModelConfig())
		sess.AddMessage(makeAssistant("call_a", "call_b"))
		sess.AddMessage(NewToolMessage("", "anonymous result"))

		pairings := sess.PairToolResults()
		if len(pairings) != 1 {
			t.Fatalf("got %d pairings, want 1", len(pairings))
		}
		if !pairings[0].Positional || pairings[0].ToolCallID != "call_a" {
			t.Errorf("pairing = %+v, want positional match on call_a", pairings[0])
		}
	})

	t.Run("unmatched result", func(t *testing.T) {
		sess := NewSession(DefaultModelConfig())
		sess.AddMessage(NewToolMessage("call_x", "orphan"))

		pairings := sess.PairToolResults()
		if len(pairings) != 1 || !pairings[0].Unmatched {
			t.Errorf("pairings = %+v, want one unmatched", pairings)
		}
	})
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short unchanged", "hi", 10, "hi"},
		{"truncated", "hello world", 8, "hello..."},
		{"unicode safe", "héllo wörld!", 8, "héllo..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

func TestMessage_Roles(t *testing.T) {
	if !RoleTool.Valid() {
		t.Error("tool should be a valid role")
	}
	if Role("robot").Valid() {
		t.Error("unknown role should not be valid")
	}

	tool := NewToolMessage("call_1", "output")
	if tool.Role != RoleTool || tool.ToolCallID != "call_1" {
		t.Errorf("NewToolMessage() = %+v", tool)
	}
}

// =============================================================================
// PRICING TESTS
// =============================================================================

func TestCostFor(t *testing.T) {
	usage := Usage{PromptTokens: 1000, CompletionTokens: 1000, TotalTokens: 2000}

	cost := CostFor("gpt-4o-mini", usage)
	want := 0.00015 + 0.0006
	if diff := cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("CostFor(gpt-4o-mini) = %v, want %v", cost, want)
	}

	if got := CostFor("totally-unknown-model", usage); got != 0 {
		t.Errorf("unknown model cost = %v, want 0", got)
	}

	if got := CostFor("llama3", usage); got != 0 {
		t.Errorf("local model cost = %v, want 0", got)
	}

	// Provider-prefixed and dated IDs resolve to the same pricing.
	if got := CostFor("anthropic/claude-3-opus", usage); got == 0 {
		t.Error("prefixed model ID should resolve pricing")
	}
}

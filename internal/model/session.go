// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one conversation thread: an ordered message history plus
// the model configuration and system prompt that apply to it.
type Session struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages, in conversation order. The session exclusively owns them.
	Messages []*Message `json:"messages"`

	// Model configuration, copied from the store default at creation and
	// independently mutable afterwards.
	Config ModelConfig `json:"config"`

	// SystemPrompt, when set, is synthesized into a system message on the
	// first send.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// NewSession creates a new session with a generated ID.
func NewSession(cfg ModelConfig) *Session {
	now := time.Now()
	return &Session{
		ID:        generateSessionID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
		Config:    cfg.Clone(),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message and updates bookkeeping.
func (s *Session) AddMessage(msg *Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	s.updateTitle()
}

// LastMessage returns the most recent message, or nil if empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// MessageByID returns a message by its ID, or nil.
func (s *Session) MessageByID(id string) *Message {
	for _, msg := range s.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// MessageIndex returns the index of the message with the given ID, or -1.
func (s *Session) MessageIndex(id string) int {
	for i, msg := range s.Messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// TruncateAfter discards every message after index i, keeping Messages[0..i].
// A negative index clears the history.
func (s *Session) TruncateAfter(i int) {
	if i < -1 {
		i = -1
	}
	if i+1 >= len(s.Messages) {
		return
	}
	s.Messages = s.Messages[:i+1]
	s.UpdatedAt = time.Now()
}

// LastUserIndexBefore returns the index of the nearest user message at or
// before index i, or -1 when none exists.
func (s *Session) LastUserIndexBefore(i int) int {
	if i >= len(s.Messages) {
		i = len(s.Messages) - 1
	}
	for ; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// IsEmpty returns true if there are no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// =============================================================================
// TOOL-RESULT PAIRING
// =============================================================================

// ToolPairing reports how a tool-role message was matched to its assistant
// tool call.
type ToolPairing struct {
	MessageID  string
	ToolCallID string
	// Positional is true when the message carried no usable ToolCallID and
	// was matched to the next unanswered tool call in order.
	Positional bool
	// Unmatched is true when no candidate tool call existed at all.
	Unmatched bool
}

// PairToolResults links each tool-role message to a preceding assistant
// tool call. Matching is by ID first; a message without an ID (or with an
// unknown one) falls back to the next unanswered call in positional order.
// The fallback is reported, not hidden: callers that care about strict
// pairing can reject any pairing with Positional or Unmatched set.
func (s *Session) PairToolResults() []ToolPairing {
	var pairings []ToolPairing

	// Tool-call IDs seen so far, in order, with answered state.
	type pendingCall struct {
		id       string
		answered bool
	}
	var pending []pendingCall

	for _, msg := range s.Messages {
		switch msg.Role {
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				pending = append(pending, pendingCall{id: tc.ID})
			}
		case RoleTool:
			p := ToolPairing{MessageID: msg.ID}

			// Exact ID match.
			matched := false
			if msg.ToolCallID != "" {
				for i := range pending {
					if pending[i].id == msg.ToolCallID && !pending[i].answered {
						pending[i].answered = true
						p.ToolCallID = pending[i].id
						matched = true
						break
					}
				}
			}

			// Positional fallback: first unanswered call in order.
			if !matched {
				for i := range pending {
					if !pending[i].answered {
						pending[i].answered = true
						p.ToolCallID = pending[i].id
						p.Positional = true
						matched = true
						break
					}
				}
			}

			if !matched {
				p.Unmatched = true
			}
			pairings = append(pairings, p)
		}
	}

	return pairings
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-generates a title from the first user message if not set.
func (s *Session) updateTitle() {
	if s.Title != "" {
		return
	}
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			s.Title = msg.Preview(50)
			return
		}
	}
}

// SetTitle manually sets the session title.
func (s *Session) SetTitle(title string) {
	s.Title = title
	s.UpdatedAt = time.Now()
}

// DisplayTitle returns the session title or a default.
func (s *Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return "New Session"
}

// =============================================================================
// METADATA & CLONING
// =============================================================================

// SessionMeta holds lightweight metadata for listing sessions.
type SessionMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// Meta returns metadata about the session.
func (s *Session) Meta() SessionMeta {
	preview := ""
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			preview = msg.Preview(80)
			break
		}
	}
	return SessionMeta{
		ID:           s.ID,
		Title:        s.DisplayTitle(),
		Model:        s.Config.Model,
		MessageCount: len(s.Messages),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Preview:      preview,
	}
}

// Clone creates a deep copy of the session.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:           s.ID,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Config:       s.Config.Clone(),
		SystemPrompt: s.SystemPrompt,
		Messages:     make([]*Message, len(s.Messages)),
	}
	for i, msg := range s.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return clone
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateSessionID creates a unique session ID.
func generateSessionID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "sess_" + hex.EncodeToString(bytes)
}

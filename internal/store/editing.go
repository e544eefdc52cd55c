// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"

	"github.com/loomchat/loom/internal/model"
)

// =============================================================================
// MESSAGE EDITING
// =============================================================================

// StartEditingMessage begins editing the identified message in the current
// session, seeding the draft with its content. Unknown IDs are a no-op.
func (s *Store) StartEditingMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentSessionLocked()
	if sess == nil {
		return
	}
	msg := sess.MessageByID(id)
	if msg == nil {
		return
	}
	s.editingID = id
	s.editingDraft = msg.Content
}

// EditingMessageID returns the ID of the message being edited, or "".
func (s *Store) EditingMessageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingID
}

// EditingDraft returns the current editing draft.
func (s *Store) EditingDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingDraft
}

// SetEditingDraft replaces the editing draft.
func (s *Store) SetEditingDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editingID != "" {
		s.editingDraft = text
	}
}

// CancelEditing abandons the edit without touching the message.
func (s *Store) CancelEditing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editingID = ""
	s.editingDraft = ""
}

// SaveEditedMessage commits the draft into the edited message. Editing a
// user message additionally discards everything after it and replays the
// pipeline, so the conversation continues from the edited text; editing any
// other role updates the content in place. When no edit is in progress this
// is a no-op.
func (s *Store) SaveEditedMessage(ctx context.Context) {
	s.mu.Lock()

	sess := s.currentSessionLocked()
	if sess == nil || s.editingID == "" {
		s.mu.Unlock()
		return
	}
	idx := sess.MessageIndex(s.editingID)
	if idx < 0 {
		s.editingID = ""
		s.editingDraft = ""
		s.mu.Unlock()
		return
	}

	msg := sess.Messages[idx]
	msg.Content = s.editingDraft
	replay := msg.Role == model.RoleUser
	if replay {
		// The edited message becomes the last one; any in-flight completion
		// for the old history is invalidated by the epoch bump inside the
		// replayed pipeline.
		sess.TruncateAfter(idx)
	}
	s.editingID = ""
	s.editingDraft = ""
	s.mu.Unlock()
	s.notify()

	if replay {
		// Blank content: the edited user message is already in the history.
		s.SendMessage(ctx, "", SendOptions{})
	}
}

// =============================================================================
// REGENERATION
// =============================================================================

// RegenerateMessage rewinds the current session to the nearest user message
// at or before the identified message and replays the pipeline from there.
// When no anchoring user message exists, nothing changes and the pipeline is
// not invoked.
func (s *Store) RegenerateMessage(ctx context.Context, id string) {
	s.mu.Lock()

	sess := s.currentSessionLocked()
	if sess == nil {
		s.mu.Unlock()
		return
	}
	idx := sess.MessageIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	anchor := sess.LastUserIndexBefore(idx)
	if anchor < 0 {
		s.mu.Unlock()
		return
	}

	sess.TruncateAfter(anchor)
	s.mu.Unlock()
	s.notify()

	s.SendMessage(ctx, "", SendOptions{})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// =============================================================================
// STREAMING OVERLAY
// =============================================================================
//
// The overlay holds at most one in-progress stream. Starting a stream while
// another is active replaces it: the previous target keeps whatever content
// it had accumulated, and new chunks flow to the new target only.

// StartStreaming marks the identified message as the streaming target and
// resets the overlay buffer.
func (s *Store) StartStreaming(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startStreamingLocked(messageID)
}

func (s *Store) startStreamingLocked(messageID string) {
	s.stream = streamState{Active: true, TargetID: messageID}
}

// UpdateStreamingContent replaces the overlay buffer and mirrors it into the
// target message's content. Chunks arriving when no stream is active, or for
// a message that no longer exists, are dropped.
func (s *Store) UpdateStreamingContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stream.Active {
		return
	}
	s.stream.Buffer = content
	s.mirrorStreamingLocked()
}

// appendStreamingLocked appends a chunk to the overlay buffer and mirrors it.
func (s *Store) appendStreamingLocked(messageID, chunk string) {
	if !s.stream.Active || s.stream.TargetID != messageID {
		return
	}
	s.stream.Buffer += chunk
	s.mirrorStreamingLocked()
}

// mirrorStreamingLocked copies the overlay buffer into the target message.
func (s *Store) mirrorStreamingLocked() {
	sess := s.currentSessionLocked()
	if sess == nil {
		return
	}
	if msg := sess.MessageByID(s.stream.TargetID); msg != nil {
		msg.Content = s.stream.Buffer
	}
}

// StopStreaming clears the overlay. The target message keeps its content.
func (s *Store) StopStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopStreamingLocked()
}

func (s *Store) stopStreamingLocked() {
	s.stream = streamState{}
}

// StreamingTarget returns the ID of the message currently receiving chunks,
// or "" when no stream is active.
func (s *Store) StreamingTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stream.Active {
		return ""
	}
	return s.stream.TargetID
}

// IsStreaming reports whether a stream is in progress.
func (s *Store) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Active
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"sync"

	"github.com/loomchat/loom/internal/completion"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/persist"
)

// =============================================================================
// COMPLETER INTERFACES
// =============================================================================

// Completer is the slice of the completion client the pipeline needs.
type Completer interface {
	Chat(ctx context.Context, req completion.ChatRequest) (*completion.ChatResponse, error)
}

// StreamingCompleter additionally supports chunked responses.
type StreamingCompleter interface {
	Completer
	ChatStream(ctx context.Context, req completion.ChatRequest, cb completion.StreamCallback) (*completion.ChatResponse, error)
}

// =============================================================================
// STORE
// =============================================================================

// streamState is the single-occupancy streaming overlay.
type streamState struct {
	Active   bool
	TargetID string
	Buffer   string
}

// Store owns all chat sessions and the pipeline state around them.
type Store struct {
	mu sync.Mutex

	// Durable state (persisted).
	sessions      []*model.Session // front = most recently created
	currentID     string
	defaultConfig model.ModelConfig
	totalTokens   int
	totalCost     float64

	// Transient state (reset on rehydration).
	inFlight     int // pipeline invocations not yet resolved
	errMsg       string
	input        string
	editingID    string
	editingDraft string
	stream       streamState

	// Per-session pipeline epochs; see pipeline.go.
	epochs map[string]uint64

	client   Completer
	onChange []func()
}

// New creates an empty store backed by the given completion client.
func New(client Completer) *Store {
	return &Store{
		client:        client,
		defaultConfig: model.DefaultModelConfig(),
		epochs:        make(map[string]uint64),
	}
}

// OnChange registers a callback fired after every mutation of durable state.
// Callbacks run outside the store lock and must not assume ordering.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// notify runs the change callbacks. Must be called WITHOUT holding mu.
func (s *Store) notify() {
	s.mu.Lock()
	callbacks := make([]func(), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// =============================================================================
// SESSION CRUD
// =============================================================================

// CreateSession creates a new session, inserts it at the front of the list,
// and makes it current. It always succeeds.
func (s *Store) CreateSession(title string, cfg *model.ModelConfig, systemPrompt string) *model.Session {
	s.mu.Lock()
	sess := s.createSessionLocked(title, cfg, systemPrompt)
	s.mu.Unlock()

	s.notify()
	return sess
}

// createSessionLocked is CreateSession without locking or notification.
func (s *Store) createSessionLocked(title string, cfg *model.ModelConfig, systemPrompt string) *model.Session {
	config := s.defaultConfig
	if cfg != nil {
		config = *cfg
	}
	sess := model.NewSession(config)
	sess.Title = title
	sess.SystemPrompt = systemPrompt

	s.sessions = append([]*model.Session{sess}, s.sessions...)
	s.currentID = sess.ID
	return sess
}

// DeleteSession removes a session by ID. When the removed session was
// current, the pointer falls back to the new first session, or to none.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	idx := s.sessionIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	delete(s.epochs, id)

	if s.currentID == id {
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		} else {
			s.currentID = ""
		}
	}
	s.mu.Unlock()

	s.notify()
}

// SetCurrentSession repoints the current pointer. An empty id clears it;
// an unknown id is ignored (the pointer must always reference an existing
// session or nothing).
func (s *Store) SetCurrentSession(id string) {
	s.mu.Lock()
	if id != "" && s.sessionIndexLocked(id) < 0 {
		s.mu.Unlock()
		return
	}
	s.currentID = id
	s.mu.Unlock()

	s.notify()
}

// UpdateSessionTitle renames a session.
func (s *Store) UpdateSessionTitle(id, title string) {
	s.mu.Lock()
	idx := s.sessionIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.sessions[idx].SetTitle(title)
	s.mu.Unlock()

	s.notify()
}

// ClearAllSessions removes every session and resets usage totals.
func (s *Store) ClearAllSessions() {
	s.mu.Lock()
	s.sessions = nil
	s.currentID = ""
	s.totalTokens = 0
	s.totalCost = 0
	s.epochs = make(map[string]uint64)
	s.mu.Unlock()

	s.notify()
}

// sessionIndexLocked returns the index of the session with the given ID.
func (s *Store) sessionIndexLocked(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// currentSessionLocked returns the current session, or nil.
func (s *Store) currentSessionLocked() *model.Session {
	if s.currentID == "" {
		return nil
	}
	if idx := s.sessionIndexLocked(s.currentID); idx >= 0 {
		return s.sessions[idx]
	}
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Sessions returns a snapshot of all sessions, most recent first.
func (s *Store) Sessions() []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// SessionMetas returns lightweight metadata for every session.
func (s *Store) SessionMetas() []model.SessionMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SessionMeta, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Meta()
	}
	return out
}

// CurrentSession returns a copy of the current session, or nil.
func (s *Store) CurrentSession() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.currentSessionLocked(); sess != nil {
		return sess.Clone()
	}
	return nil
}

// CurrentSessionID returns the current session ID, or "".
func (s *Store) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Session returns a copy of the session with the given ID, or nil.
func (s *Store) Session(id string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.sessionIndexLocked(id); idx >= 0 {
		return s.sessions[idx].Clone()
	}
	return nil
}

// Messages returns the active session's messages: the flattened view. It is
// derived from the current session on every call, so it can never diverge
// from the session's own history.
func (s *Store) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.currentSessionLocked()
	if sess == nil {
		return nil
	}
	out := make([]*model.Message, len(sess.Messages))
	for i, msg := range sess.Messages {
		out[i] = msg.Clone()
	}
	return out
}

// IsSending reports whether a pipeline invocation is in flight.
func (s *Store) IsSending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Err returns the user-visible error from the last failed action, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ClearErr clears the error state.
func (s *Store) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

// Input returns the draft input buffer.
func (s *Store) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInput sets the draft input buffer.
func (s *Store) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// TotalTokens returns the cumulative token count across all completions.
func (s *Store) TotalTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTokens
}

// TotalCost returns the cumulative dollar cost across all completions.
func (s *Store) TotalCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCost
}

// DefaultModelConfig returns the store-wide default model configuration.
func (s *Store) DefaultModelConfig() model.ModelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultConfig.Clone()
}

// SetDefaultModelConfig replaces the store-wide default. Existing sessions
// keep their own copies.
func (s *Store) SetDefaultModelConfig(cfg model.ModelConfig) {
	s.mu.Lock()
	s.defaultConfig = cfg.Clone()
	s.mu.Unlock()

	s.notify()
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Snapshot projects the durable subset of store state. Transient flags are
// excluded by construction.
func (s *Store) Snapshot() persist.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*model.Session, len(s.sessions))
	for i, sess := range s.sessions {
		sessions[i] = sess.Clone()
	}
	return persist.Snapshot{
		Sessions:           sessions,
		CurrentSessionID:   s.currentID,
		DefaultModelConfig: s.defaultConfig.Clone(),
		TotalTokens:        s.totalTokens,
		TotalCost:          s.totalCost,
	}
}

// Hydrate replaces durable state from a snapshot. Transient state resets to
// defaults regardless of its value at persist time. A current ID that no
// longer references an existing session falls back to the first session.
func (s *Store) Hydrate(snap persist.Snapshot) {
	s.mu.Lock()
	s.sessions = snap.Sessions
	s.currentID = snap.CurrentSessionID
	s.defaultConfig = snap.DefaultModelConfig.Clone()
	s.totalTokens = snap.TotalTokens
	s.totalCost = snap.TotalCost

	// Re-validate the pointer invariant.
	if s.currentID != "" && s.sessionIndexLocked(s.currentID) < 0 {
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		} else {
			s.currentID = ""
		}
	}

	// Transient state always resets.
	s.inFlight = 0
	s.errMsg = ""
	s.input = ""
	s.editingID = ""
	s.editingDraft = ""
	s.stream = streamState{}
	s.epochs = make(map[string]uint64)
	s.mu.Unlock()
}

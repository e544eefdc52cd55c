// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the session store over a localhost HTTP API.
//
// Endpoints:
//   - GET    /api/sessions            - List session metadata
//   - POST   /api/sessions            - Create a session
//   - GET    /api/sessions/{id}       - Fetch a full session
//   - PATCH  /api/sessions/{id}       - Rename a session
//   - DELETE /api/sessions/{id}       - Delete a session
//   - POST   /api/sessions/{id}/share - Publish a session to the share service
//   - GET    /api/messages            - Current session's message view
//   - POST   /api/chat                - Send a message through the pipeline
//   - GET    /api/state               - Transient store state (sending/error/streaming)
//   - GET    /healthz                 - Health check
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/loomchat/loom/internal/logging"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/share"
	"github.com/loomchat/loom/internal/store"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MaxRequestBodySize bounds request bodies.
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxContentLength bounds a single chat message.
	MaxContentLength = 100000

	// Version is the API version reported by /healthz.
	Version = "0.1.0"
)

// =============================================================================
// SERVER
// =============================================================================

// Options configures the server.
type Options struct {
	// Addr is the listen address; must resolve to a loopback interface.
	Addr string
	// RateLimit is the sustained requests-per-second budget.
	RateLimit float64
	// RateBurst is the token-bucket burst size.
	RateBurst int
	// Stream requests chunked completions for /api/chat sends.
	Stream bool
}

// Server serves the session store over HTTP.
type Server struct {
	store   *store.Store
	share   *share.Client
	opts    Options
	mux     *http.ServeMux
	limiter *rate.Limiter
	server  *http.Server
}

// New creates a server over the given store. The share client may be nil
// when sharing is not configured.
func New(st *store.Store, shareClient *share.Client, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:7357"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}

	s := &Server{
		store:   st,
		share:   shareClient,
		opts:    opts,
		mux:     http.NewServeMux(),
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("PATCH /api/sessions/{id}", s.handleRenameSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/share", s.handleShareSession)
	s.mux.HandleFunc("GET /api/messages", s.handleMessages)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the full middleware-wrapped handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		RateLimitMiddleware(s.limiter),
	)(s.mux)
}

// Start validates the bind address and serves until Shutdown.
func (s *Server) Start() error {
	host, _, err := net.SplitHostPort(s.opts.Addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", s.opts.Addr, err)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("refusing to bind non-loopback address %q", s.opts.Addr)
	}

	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logging.Infof("server: listening on %s", s.opts.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	logging.Infof("server: shutting down")
	return s.server.Shutdown(ctx)
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.store.SessionMetas(),
		"current":  s.store.CurrentSessionID(),
	})
}

type createSessionRequest struct {
	Title        string `json:"title"`
	SystemPrompt string `json:"system_prompt"`
	Model        string `json:"model"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var cfg *model.ModelConfig
	if req.Model != "" {
		c := s.store.DefaultModelConfig()
		c.Model = req.Model
		cfg = &c
	}
	sess := s.store.CreateSession(req.Title, cfg, req.SystemPrompt)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Session(r.PathValue("id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.store.Session(id) == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	var req renameSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	s.store.UpdateSessionTitle(id, req.Title)
	writeJSON(w, http.StatusOK, s.store.Session(id))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.store.Session(id) == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.store.DeleteSession(id)
	writeJSON(w, http.StatusOK, map[string]string{
		"deleted": id,
		"current": s.store.CurrentSessionID(),
	})
}

func (s *Server) handleShareSession(w http.ResponseWriter, r *http.Request) {
	if s.share == nil || !s.share.IsConfigured() {
		writeError(w, http.StatusServiceUnavailable, "share service not configured")
		return
	}
	sess := s.store.Session(r.PathValue("id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	result, err := s.share.Share(r.Context(), share.BuildPayload(sess, false))
	if err != nil {
		logging.Warnf("server: share failed: %v", err)
		writeError(w, http.StatusBadGateway, "share upload failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// CHAT HANDLERS
// =============================================================================

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.store.CurrentSessionID(),
		"messages":   s.store.Messages(),
	})
}

type chatRequest struct {
	Content      string `json:"content"`
	SystemPrompt string `json:"system_prompt"`
}

// handleChat runs the pipeline synchronously and returns the resulting view.
// Pipeline failures surface in the "error" field with a 200 status: the send
// itself succeeded in mutating the store.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Content) > MaxContentLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("content exceeds maximum length of %d", MaxContentLength))
		return
	}

	s.store.SendMessage(r.Context(), req.Content, store.SendOptions{
		SystemPrompt: req.SystemPrompt,
		Stream:       s.opts.Stream,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.store.CurrentSessionID(),
		"messages":   s.store.Messages(),
		"error":      s.store.Err(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current_session_id": s.store.CurrentSessionID(),
		"sending":            s.store.IsSending(),
		"streaming":          s.store.IsStreaming(),
		"streaming_target":   s.store.StreamingTarget(),
		"error":              s.store.Err(),
		"total_tokens":       s.store.TotalTokens(),
		"total_cost":         s.store.TotalCost(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  Version,
		"sessions": len(s.store.SessionMetas()),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeBody parses a JSON request body, writing the error response itself
// when parsing fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}

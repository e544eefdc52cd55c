// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomchat/loom/internal/completion"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/share"
	"github.com/loomchat/loom/internal/store"
)

// scriptedCompleter returns a fixed assistant reply.
type scriptedCompleter struct {
	content string
	err     error
}

func (c *scriptedCompleter) Chat(context.Context, completion.ChatRequest) (*completion.ChatResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &completion.ChatResponse{
		Choices: []completion.Choice{{
			Message:      completion.ChatMessage{Role: "assistant", Content: c.content},
			FinishReason: "stop",
		}},
	}, nil
}

func newTestServer(t *testing.T, client store.Completer, shareClient *share.Client) (*Server, *store.Store) {
	t.Helper()
	st := store.New(client)
	return New(st, shareClient, Options{RateLimit: 1000, RateBurst: 1000}), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedCompleter{content: "hi"}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSessionLifecycle(t *testing.T) {
	srv, st := newTestServer(t, &scriptedCompleter{content: "hi"}, nil)
	h := srv.Handler()

	// Create.
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{
		"title": "my session",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "my session", created.Title)

	// List.
	rec = doJSON(t, h, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []model.SessionMeta `json:"sessions"`
		Current  string              `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, created.ID, list.Current)

	// Rename.
	rec = doJSON(t, h, http.MethodPatch, "/api/sessions/"+created.ID, map[string]string{"title": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", st.Session(created.ID).Title)

	// Delete.
	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, st.SessionMetas())
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedCompleter{content: "hi"}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/sessions/sess_nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat_SendsAndReturnsMessages(t *testing.T) {
	srv, st := newTestServer(t, &scriptedCompleter{content: "Hi there"}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", map[string]string{
		"content":       "Hello",
		"system_prompt": "You are helpful",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SessionID string           `json:"session_id"`
		Messages  []*model.Message `json:"messages"`
		Error     string           `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Error)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, model.RoleSystem, body.Messages[0].Role)
	assert.Equal(t, "Hello", body.Messages[1].Content)
	assert.Equal(t, "Hi there", body.Messages[2].Content)
	assert.Equal(t, st.CurrentSessionID(), body.SessionID)
}

func TestChat_PipelineFailureSurfacesInBody(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedCompleter{err: completion.ErrAuthFailed}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", map[string]string{"content": "Hello"})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []*model.Message `json:"messages"`
		Error    string           `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "Authentication failed")
	require.Len(t, body.Messages, 1) // the user's message stays
}

func TestChat_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedCompleter{content: "hi"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestState_ReflectsStore(t *testing.T) {
	srv, st := newTestServer(t, &scriptedCompleter{content: "hi"}, nil)
	st.SendMessage(context.Background(), "hello", store.SendOptions{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/state", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["sending"])
	assert.Equal(t, st.CurrentSessionID(), body["current_session_id"])
}

func TestShare_NotConfigured(t *testing.T) {
	srv, st := newTestServer(t, &scriptedCompleter{content: "hi"}, nil)
	sess := st.CreateSession("s", nil, "")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions/"+sess.ID+"/share", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestShare_Success(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(share.Result{ID: "shr_1", URL: "https://share.example/shr_1"})
	}))
	defer upstream.Close()

	srv, st := newTestServer(t, &scriptedCompleter{content: "hi"}, share.NewClient(upstream.URL))
	st.SendMessage(context.Background(), "hello", store.SendOptions{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions/"+st.CurrentSessionID()+"/share", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var result share.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "https://share.example/shr_1", result.URL)
}

func TestRateLimit(t *testing.T) {
	st := store.New(&scriptedCompleter{content: "hi"})
	srv := New(st, nil, Options{RateLimit: 1, RateBurst: 2})
	h := srv.Handler()

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
		codes[rec.Code]++
	}

	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}

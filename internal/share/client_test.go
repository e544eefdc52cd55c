// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package share

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomchat/loom/internal/model"
)

func sampleSession() *model.Session {
	sess := model.NewSession(model.DefaultModelConfig())
	sess.AddMessage(model.NewSystemMessage("be helpful"))
	sess.AddMessage(model.NewUserMessage("hello"))
	reply := model.NewAssistantMessage("hi")
	reply.Usage = &model.Usage{TotalTokens: 10}
	reply.Cost = 0.001
	sess.AddMessage(reply)
	return sess
}

func TestBuildPayload_ExcludesSystemByDefault(t *testing.T) {
	p := BuildPayload(sampleSession(), false)

	require.Len(t, p.Messages, 2)
	assert.Equal(t, "user", p.Messages[0].Role)
	assert.Equal(t, "assistant", p.Messages[1].Role)
	assert.Equal(t, 10, p.TotalTokens)
	assert.InDelta(t, 0.001, p.TotalCost, 1e-12)
	assert.Equal(t, "hello", p.Title) // auto-title from first user message
}

func TestBuildPayload_IncludeSystem(t *testing.T) {
	p := BuildPayload(sampleSession(), true)

	require.Len(t, p.Messages, 3)
	assert.Equal(t, "system", p.Messages[0].Role)
}

func TestShare_Success(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/shares", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Result{ID: "shr_1", URL: "https://share.example/shr_1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	result, err := client.Share(context.Background(), BuildPayload(sampleSession(), false))

	require.NoError(t, err)
	assert.Equal(t, "shr_1", result.ID)
	assert.Equal(t, "https://share.example/shr_1", result.URL)
	assert.Len(t, received.Messages, 2)
}

func TestShare_NoEndpoint(t *testing.T) {
	client := NewClient("")
	_, err := client.Share(context.Background(), Payload{})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestShare_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Share(context.Background(), Payload{})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestShare_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Share(context.Background(), Payload{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loomchat/loom/internal/logging"
	"github.com/loomchat/loom/internal/model"
)

const (
	// DefaultTimeout bounds a share upload.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize bounds the share service's response body.
	maxResponseSize = 1 * 1024 * 1024
)

var (
	// ErrNoEndpoint indicates no share service endpoint is configured.
	ErrNoEndpoint = errors.New("share service endpoint not configured")

	// ErrRejected indicates the share service refused the payload.
	ErrRejected = errors.New("share service rejected the payload")
)

// =============================================================================
// PAYLOAD
// =============================================================================

// SharedMessage is the published projection of one message. Tool plumbing
// and per-message accounting stay private.
type SharedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Payload is the document uploaded to the share service.
type Payload struct {
	Title       string            `json:"title"`
	Messages    []SharedMessage   `json:"messages"`
	Config      model.ModelConfig `json:"config"`
	TotalTokens int               `json:"total_tokens,omitempty"`
	TotalCost   float64           `json:"total_cost,omitempty"`
}

// Result is the share service's answer: the share's ID and public URL.
type Result struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// BuildPayload projects a session into a share payload. System messages are
// included only when includeSystem is set.
func BuildPayload(sess *model.Session, includeSystem bool) Payload {
	p := Payload{
		Title:  sess.DisplayTitle(),
		Config: sess.Config.Clone(),
	}
	for _, msg := range sess.Messages {
		if msg.Role == model.RoleSystem && !includeSystem {
			continue
		}
		p.Messages = append(p.Messages, SharedMessage{
			Role:      msg.Role.String(),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
		if msg.Usage != nil {
			p.TotalTokens += msg.Usage.TotalTokens
		}
		p.TotalCost += msg.Cost
	}
	return p
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the share service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint. An empty endpoint still
// produces a usable client, but Share calls fail with ErrNoEndpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(strings.TrimSpace(endpoint), "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithTimeout sets the upload timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// IsConfigured returns true if the client has an endpoint.
func (c *Client) IsConfigured() bool {
	return c.endpoint != ""
}

// Share uploads the payload and returns the share's ID and URL.
func (c *Client) Share(ctx context.Context, payload Payload) (*Result, error) {
	if !c.IsConfigured() {
		return nil, ErrNoEndpoint
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shares", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Method/path and status/duration only: never bodies.
	logging.Debugf("share: POST %s -> %d (%v)", req.URL.Path, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w (HTTP %d)", ErrRejected, resp.StatusCode)
	default:
		return nil, fmt.Errorf("share service error (HTTP %d)", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("share service returned no URL")
	}
	return &result, nil
}

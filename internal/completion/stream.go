// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loomchat/loom/internal/logging"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxChunkSize is the maximum allowed size for a single SSE data payload.
const MaxChunkSize = 64 * 1024

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is a single delta from the streaming endpoint.
type StreamChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is one candidate delta in a stream chunk.
type ChunkChoice struct {
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

// ChunkDelta carries the incremental content of a chunk.
type ChunkDelta struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
}

// Content returns the content delta of the first choice.
func (c *StreamChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// Done returns true when the stream has a finish reason.
func (c *StreamChunk) Done() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != ""
}

// StreamCallback is invoked for each chunk received.
type StreamCallback func(chunk StreamChunk)

// StreamError preserves partial content received before a stream failure.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates an SSE reader over r.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next SSE event, returning its type and data.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := bytes.TrimSpace(line[5:])
			if len(data) > MaxChunkSize {
				return "", nil, fmt.Errorf("SSE chunk exceeds %d bytes", MaxChunkSize)
			}
			dataLines = append(dataLines, data)
		}
		// id:, retry: and comment lines are ignored.
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream performs a streaming chat completion, invoking callback for
// each chunk. Cancellation is via ctx; there is no client-side timeout on
// the stream itself.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, callback StreamCallback) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req.Stream = true
	url := c.baseURL + "/chat/completions"

	bodyBytes, err := encodeRequest(req, c.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streaming uses a client without a global timeout; the context governs
	// the stream's lifetime.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	start := time.Now()
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, rerr := readLimited(resp)
		if rerr != nil {
			return nil, rerr
		}
		return nil, errorFromResponse(resp.StatusCode, body)
	}

	var content bytes.Buffer
	var usage Usage
	var modelID, respID string

	sse := NewSSEReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return nil, &StreamError{Partial: content.String(), Err: ctx.Err()}
		default:
		}

		_, data, err := sse.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &StreamError{Partial: content.String(), Err: err}
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed keep-alive payloads rather than aborting.
			continue
		}

		if chunk.ID != "" {
			respID = chunk.ID
		}
		if chunk.Model != "" {
			modelID = chunk.Model
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}

		content.WriteString(chunk.Content())
		callback(chunk)

		if chunk.Done() {
			// Trailing usage frames may still arrive; keep reading until
			// [DONE] or EOF.
			continue
		}
	}

	logging.Debugf("completion: stream %s finished (%v, %d chars)", httpReq.URL.Path, time.Since(start), content.Len())

	final := &ChatResponse{ID: respID, Model: modelID, Usage: usage}
	final.Choices = append(final.Choices, Choice{
		Message:      ChatMessage{Role: "assistant", Content: content.String()},
		FinishReason: "stop",
	})
	return final, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"strings"

	"github.com/loomchat/loom/internal/completion"
	"github.com/loomchat/loom/internal/logging"
	"github.com/loomchat/loom/internal/model"
)

// SendOptions tunes a single SendMessage invocation.
type SendOptions struct {
	// SystemPrompt is synthesized into a system message when the target
	// session is still empty. It does not retroactively apply to sessions
	// that already have history.
	SystemPrompt string

	// Config overrides the store default when SendMessage has to create the
	// session itself.
	Config *model.ModelConfig

	// Stream requests chunked delivery through the streaming overlay when
	// the client supports it.
	Stream bool
}

// =============================================================================
// SEND PIPELINE
// =============================================================================

// SendMessage runs the full message pipeline:
//
//  1. ensure a current session exists, creating one when needed,
//  2. synthesize the system message on an empty session,
//  3. append the user's message (skipped when content is blank, which
//     replays the existing history instead, e.g. after an edit),
//  4. clear the input buffer and raise the sending flag,
//  5. send the complete history to the completion service,
//  6. merge intermediate tool turns and the final assistant reply back,
//  7. accumulate token and cost totals,
//  8. lower the sending flag.
//
// Service failures are recorded in Err() rather than returned; everything
// appended before the failure stays. The single attempt here is deliberate —
// transport-level retries live in the completion client.
func (s *Store) SendMessage(ctx context.Context, content string, opts SendOptions) {
	s.mu.Lock()

	sess := s.currentSessionLocked()
	if sess == nil {
		sess = s.createSessionLocked("", opts.Config, opts.SystemPrompt)
	}

	if sess.IsEmpty() {
		prompt := opts.SystemPrompt
		if prompt == "" {
			prompt = sess.SystemPrompt
		}
		if prompt != "" {
			sess.AddMessage(model.NewSystemMessage(prompt))
		}
	}

	if trimmed := strings.TrimSpace(content); trimmed != "" {
		sess.AddMessage(model.NewUserMessage(trimmed))
	}

	s.input = ""
	s.errMsg = ""
	s.inFlight++

	// Tag this invocation. A response only applies while its epoch is still
	// the session's latest; anything else resolved too late and is dropped.
	sessionID := sess.ID
	epoch := s.bumpEpochLocked(sessionID)
	cfg := sess.Config.Clone()
	wire := completion.FromModelMessages(sess.Messages)

	s.mu.Unlock()
	s.notify()

	if opts.Stream {
		if sc, ok := s.client.(StreamingCompleter); ok {
			s.sendStreaming(ctx, sc, sessionID, epoch, cfg, wire)
			return
		}
	}

	resp, err := s.client.Chat(ctx, completion.BuildRequest(cfg, wire, false))
	s.applyResponse(sessionID, epoch, cfg, resp, err)
}

// bumpEpochLocked advances and returns the session's pipeline epoch.
func (s *Store) bumpEpochLocked(sessionID string) uint64 {
	s.epochs[sessionID]++
	return s.epochs[sessionID]
}

// staleLocked reports whether a response tagged (sessionID, epoch) arrived
// too late to apply.
func (s *Store) staleLocked(sessionID string, epoch uint64) bool {
	if s.sessionIndexLocked(sessionID) < 0 {
		return true
	}
	return s.epochs[sessionID] != epoch
}

// applyResponse merges a completion result back into the session, or records
// the failure. Stale responses are discarded wholesale.
func (s *Store) applyResponse(sessionID string, epoch uint64, cfg model.ModelConfig, resp *completion.ChatResponse, err error) {
	s.mu.Lock()
	s.inFlight--

	if s.staleLocked(sessionID, epoch) {
		logging.Debugf("store: discarding stale completion for session %s (epoch %d)", sessionID, epoch)
		s.mu.Unlock()
		return
	}

	sess := s.sessions[s.sessionIndexLocked(sessionID)]

	if err != nil {
		s.errMsg = humanizeError(err)
		s.mu.Unlock()
		s.notify()
		return
	}

	// Intermediate tool turns first, in service order, then the final reply.
	for _, cm := range resp.Transcript {
		sess.AddMessage(completion.ToModelMessage(cm))
	}

	final := completion.ToModelMessage(resp.Final())
	usage := model.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	final.Usage = &usage

	cost := resp.Cost
	if cost == 0 {
		modelID := resp.Model
		if modelID == "" {
			modelID = cfg.Model
		}
		cost = model.CostFor(modelID, usage)
	}
	final.Cost = cost
	sess.AddMessage(final)

	s.totalTokens += usage.TotalTokens
	s.totalCost += cost
	s.mu.Unlock()

	s.notify()
}

// =============================================================================
// STREAMING SEND
// =============================================================================

// sendStreaming runs the pipeline tail with chunked delivery. An empty
// assistant message is appended up front as the streaming target; chunks
// land in the overlay and mirror into the target's content, and the final
// response fills in usage and cost.
func (s *Store) sendStreaming(ctx context.Context, client StreamingCompleter, sessionID string, epoch uint64, cfg model.ModelConfig, wire []completion.ChatMessage) {
	s.mu.Lock()
	if s.staleLocked(sessionID, epoch) {
		s.inFlight--
		s.mu.Unlock()
		return
	}
	target := model.NewAssistantMessage("")
	s.sessions[s.sessionIndexLocked(sessionID)].AddMessage(target)
	s.startStreamingLocked(target.ID)
	s.mu.Unlock()
	s.notify()

	resp, err := client.ChatStream(ctx, completion.BuildRequest(cfg, wire, true), func(chunk completion.StreamChunk) {
		s.mu.Lock()
		if s.staleLocked(sessionID, epoch) {
			s.mu.Unlock()
			return
		}
		s.appendStreamingLocked(target.ID, chunk.Content())
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.inFlight--
	if s.staleLocked(sessionID, epoch) {
		logging.Debugf("store: discarding stale stream for session %s (epoch %d)", sessionID, epoch)
		s.mu.Unlock()
		return
	}

	sess := s.sessions[s.sessionIndexLocked(sessionID)]
	s.stopStreamingLocked()

	if err != nil {
		// Partial content already delivered stays on the target message.
		var streamErr *completion.StreamError
		if errors.As(err, &streamErr) && streamErr.Partial != "" {
			if msg := sess.MessageByID(target.ID); msg != nil {
				msg.Content = streamErr.Partial
			}
		}
		s.errMsg = humanizeError(err)
		s.mu.Unlock()
		s.notify()
		return
	}

	if msg := sess.MessageByID(target.ID); msg != nil {
		if c := resp.Content(); c != "" {
			msg.Content = c
		}
		usage := model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		msg.Usage = &usage

		cost := resp.Cost
		if cost == 0 {
			modelID := resp.Model
			if modelID == "" {
				modelID = cfg.Model
			}
			cost = model.CostFor(modelID, usage)
		}
		msg.Cost = cost

		s.totalTokens += usage.TotalTokens
		s.totalCost += cost
	}
	s.mu.Unlock()

	s.notify()
}

// =============================================================================
// ERROR PRESENTATION
// =============================================================================

// humanizeError turns a pipeline failure into the user-visible error string.
func humanizeError(err error) string {
	switch {
	case errors.Is(err, completion.ErrNotConfigured):
		return "No API key configured. Run 'loom config set-key' to add one."
	case errors.Is(err, completion.ErrAuthFailed):
		return "Authentication failed. Check your API key."
	case errors.Is(err, completion.ErrRateLimited):
		return "Rate limited by the completion service. Try again shortly."
	case errors.Is(err, completion.ErrModelNotFound):
		return "The configured model was not found."
	case errors.Is(err, completion.ErrInsufficientCredits):
		return "Insufficient credits on the completion service account."
	case errors.Is(err, context.Canceled):
		return "Request canceled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out."
	default:
		return "Failed to get a response: " + err.Error()
	}
}

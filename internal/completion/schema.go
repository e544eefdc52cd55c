// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"encoding/json"
)

// =============================================================================
// WIRE SCHEMA VERSIONS
// =============================================================================

// Schema selects how tool-call arguments travel on the wire.
//
// The current schema encodes arguments as a JSON string ("{\"q\":\"go\"}"),
// matching the OpenAI chat-completions format. The legacy schema sent them
// as a structured object ({"q":"go"}). The engine stores arguments as
// strings; the client re-serializes at the request boundary.
type Schema int

const (
	// SchemaCurrent encodes tool-call arguments as a JSON string.
	SchemaCurrent Schema = iota

	// SchemaLegacy encodes tool-call arguments as a structured object.
	SchemaLegacy
)

// encodeStringJSON quotes s as a JSON string literal.
func encodeStringJSON(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail; keep the compiler happy.
		return []byte(`""`)
	}
	return b
}

// decodeArguments normalizes wire arguments to the engine's string form.
// Accepts both representations: a JSON string is unquoted, anything else is
// kept verbatim.
func decodeArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// encodeRequest marshals a ChatRequest under the given schema.
func encodeRequest(req ChatRequest, schema Schema) ([]byte, error) {
	if schema == SchemaCurrent {
		return json.Marshal(req)
	}

	// Legacy: rewrite each tool call's arguments from the string form into
	// the structured form before marshalling.
	msgs := make([]ChatMessage, len(req.Messages))
	copy(msgs, req.Messages)
	for i := range msgs {
		if len(msgs[i].ToolCalls) == 0 {
			continue
		}
		calls := make([]ToolCall, len(msgs[i].ToolCalls))
		copy(calls, msgs[i].ToolCalls)
		for j := range calls {
			args := decodeArguments(calls[j].Function.Arguments)
			if json.Valid([]byte(args)) {
				calls[j].Function.Arguments = json.RawMessage(args)
			} else {
				// Not parseable as JSON: keep the string encoding so the
				// payload stays valid.
				calls[j].Function.Arguments = json.RawMessage(encodeStringJSON(args))
			}
		}
		msgs[i].ToolCalls = calls
	}
	req.Messages = msgs
	return json.Marshal(req)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// PRICING REGISTRY
// =============================================================================

// Pricing holds per-1K-token prices in dollars for one model.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// pricingTable maps model IDs to their token pricing. Local models are free.
// Used to derive a cost when the completion service does not report one.
var pricingTable = map[string]Pricing{
	// Anthropic
	"claude-3-haiku":    {PromptPer1K: 0.00025, CompletionPer1K: 0.00125},
	"claude-3-5-sonnet": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
	"claude-3-opus":     {PromptPer1K: 0.015, CompletionPer1K: 0.075},

	// OpenAI
	"gpt-4o":      {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
	"gpt-4o-mini": {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
	"gpt-4-turbo": {PromptPer1K: 0.01, CompletionPer1K: 0.03},

	// Common local models (free)
	"llama3":        {},
	"llama3.1":      {},
	"mistral":       {},
	"qwen2.5-coder": {},
}

// PricingFor looks up pricing for a model ID. Unknown models return a zero
// Pricing and false; callers treat those as free rather than guessing.
func PricingFor(modelID string) (Pricing, bool) {
	if p, ok := pricingTable[modelID]; ok {
		return p, true
	}
	// Tolerate provider-prefixed IDs like "anthropic/claude-3-opus" and
	// dated variants like "claude-3-opus-20240229".
	lower := strings.ToLower(modelID)
	for id, p := range pricingTable {
		if strings.Contains(lower, id) {
			return p, true
		}
	}
	return Pricing{}, false
}

// CostFor derives a dollar cost for the given usage on the given model.
// Returns 0 for unknown or free models.
func CostFor(modelID string, usage Usage) float64 {
	p, ok := PricingFor(modelID)
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1000*p.PromptPer1K +
		float64(usage.CompletionTokens)/1000*p.CompletionPer1K
}

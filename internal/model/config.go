// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// ModelConfig selects a provider/model pair plus optional sampling
// parameters. Parameters are pointers so "unset" is distinguishable from an
// explicit zero; an unset field is omitted from completion requests.
//
// Two scopes exist: the store-wide default, and a per-session copy taken at
// session creation and independently mutable afterwards.
type ModelConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`

	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// DefaultModelConfig returns the built-in model selection used when no
// configuration overrides it.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
}

// Clone returns a deep copy of the config, including pointer fields.
func (c ModelConfig) Clone() ModelConfig {
	cp := c
	cp.Temperature = cloneFloat(c.Temperature)
	cp.MaxTokens = cloneInt(c.MaxTokens)
	cp.TopP = cloneFloat(c.TopP)
	cp.FrequencyPenalty = cloneFloat(c.FrequencyPenalty)
	cp.PresencePenalty = cloneFloat(c.PresencePenalty)
	return cp
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// Float64Ptr returns a pointer to f. Convenience for building configs.
func Float64Ptr(f float64) *float64 { return &f }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

package nemochat

import (
	"fmt"
)

// Parameter ranges. These match the settings panel limits.
const (
	TemperatureMin = 0.0
	TemperatureMax = 1.0

	TopPMin = 0.0
	TopPMax = 1.0

	MaxTokensMin = 256
	MaxTokensMax = 8192

	PenaltyMin = -2.0
	PenaltyMax = 2.0
)

// ModelParameters are the generation controls attached to every outgoing
// request. They are inert data; the relay interprets them.
type ModelParameters struct {
	// Temperature controls randomness (0 = deterministic, 1 = creative)
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`

	// TopP (nucleus sampling) - cumulative probability cutoff
	TopP float64 `json:"top_p" yaml:"top_p" toml:"top_p"`

	// MaxTokens is the maximum number of tokens in the response
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`

	// FrequencyPenalty reduces repetition of token sequences
	FrequencyPenalty float64 `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`

	// PresencePenalty reduces repetition of topics
	PresencePenalty float64 `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
}

// DefaultModelParameters returns the parameters of the embedded seed.
func DefaultModelParameters() ModelParameters {
	return DefaultSeed().Settings
}

// Validate checks every field against its fixed range.
func (p ModelParameters) Validate() error {
	if p.Temperature < TemperatureMin || p.Temperature > TemperatureMax {
		return invalidParam("temperature", p.Temperature,
			fmt.Sprintf("must be between %.1f and %.1f", TemperatureMin, TemperatureMax))
	}

	if p.TopP < TopPMin || p.TopP > TopPMax {
		return invalidParam("top_p", p.TopP,
			fmt.Sprintf("must be between %.1f and %.1f", TopPMin, TopPMax))
	}

	if p.MaxTokens < MaxTokensMin || p.MaxTokens > MaxTokensMax {
		return invalidParam("max_tokens", p.MaxTokens,
			fmt.Sprintf("must be between %d and %d", MaxTokensMin, MaxTokensMax))
	}

	if p.FrequencyPenalty < PenaltyMin || p.FrequencyPenalty > PenaltyMax {
		return invalidParam("frequency_penalty", p.FrequencyPenalty,
			fmt.Sprintf("must be between %.1f and %.1f", PenaltyMin, PenaltyMax))
	}

	if p.PresencePenalty < PenaltyMin || p.PresencePenalty > PenaltyMax {
		return invalidParam("presence_penalty", p.PresencePenalty,
			fmt.Sprintf("must be between %.1f and %.1f", PenaltyMin, PenaltyMax))
	}

	return nil
}

func invalidParam(field string, value any, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
		Err:    ErrInvalidParameters,
	}
}

// ParameterUpdate is a partial change to ModelParameters.
// All fields are optional pointers to distinguish "not set" from "set to zero value".
type ParameterUpdate struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// Apply returns p with every set field of u replaced. The result is validated
// as a whole; p is returned unchanged alongside the error on failure.
func (u ParameterUpdate) Apply(p ModelParameters) (ModelParameters, error) {
	next := p
	if u.Temperature != nil {
		next.Temperature = *u.Temperature
	}
	if u.TopP != nil {
		next.TopP = *u.TopP
	}
	if u.MaxTokens != nil {
		next.MaxTokens = *u.MaxTokens
	}
	if u.FrequencyPenalty != nil {
		next.FrequencyPenalty = *u.FrequencyPenalty
	}
	if u.PresencePenalty != nil {
		next.PresencePenalty = *u.PresencePenalty
	}
	if err := next.Validate(); err != nil {
		return p, err
	}
	return next, nil
}

// IsEmpty returns true if the update changes nothing
func (u ParameterUpdate) IsEmpty() bool {
	return u.Temperature == nil && u.TopP == nil && u.MaxTokens == nil &&
		u.FrequencyPenalty == nil && u.PresencePenalty == nil
}

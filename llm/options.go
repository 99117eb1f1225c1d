package llm

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/samber/lo"
)

const (
	DefaultChatModel      = "gpt-4o"
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultMaxTokens      = 2048

	// LegacyCompletionModel is rewritten to DefaultChatModel for completion calls.
	LegacyCompletionModel = "text-davinci-003"

	maxStopSequences = 4
)

// Options is the resolved set of generation options for a model instance.
// Fields that a modality does not use are ignored when building its requests.
type Options struct {
	Model            string   `json:"model,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      float32  `json:"temperature"`
	TopP             float32  `json:"top_p"`
	N                int      `json:"n,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	PresencePenalty  float32  `json:"presence_penalty"`
	FrequencyPenalty float32  `json:"frequency_penalty"`
	BestOf           int      `json:"best_of,omitempty"` // Completion only, never sent upstream
}

// Overrides are caller-supplied options. A nil field keeps the default; a
// non-nil field wins even when it points at zero.
type Overrides struct {
	Model            string   `yaml:"model,omitempty" json:"model,omitempty"`
	MaxTokens        *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature      *float32 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP             *float32 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	N                *int     `yaml:"n,omitempty" json:"n,omitempty"`
	Stop             []string `yaml:"stop,omitempty" json:"stop,omitempty"`
	PresencePenalty  *float32 `yaml:"presence_penalty,omitempty" json:"presence_penalty,omitempty"`
	FrequencyPenalty *float32 `yaml:"frequency_penalty,omitempty" json:"frequency_penalty,omitempty"`
	BestOf           *int     `yaml:"best_of,omitempty" json:"best_of,omitempty"`
}

// Clone returns a copy that shares no memory with o.
func (o Overrides) Clone() Overrides {
	return Overrides{
		Model:            o.Model,
		MaxTokens:        clonePtr(o.MaxTokens),
		Temperature:      clonePtr(o.Temperature),
		TopP:             clonePtr(o.TopP),
		N:                clonePtr(o.N),
		Stop:             append([]string(nil), o.Stop...),
		PresencePenalty:  clonePtr(o.PresencePenalty),
		FrequencyPenalty: clonePtr(o.FrequencyPenalty),
		BestOf:           clonePtr(o.BestOf),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return lo.ToPtr(*p)
}

// overrides expresses every field of o as set.
func (o Options) overrides() Overrides {
	return Overrides{
		Model:            o.Model,
		MaxTokens:        lo.ToPtr(o.MaxTokens),
		Temperature:      lo.ToPtr(o.Temperature),
		TopP:             lo.ToPtr(o.TopP),
		N:                lo.ToPtr(o.N),
		Stop:             append([]string(nil), o.Stop...),
		PresencePenalty:  lo.ToPtr(o.PresencePenalty),
		FrequencyPenalty: lo.ToPtr(o.FrequencyPenalty),
		BestOf:           lo.ToPtr(o.BestOf),
	}
}

// options collapses fully populated overrides back into values.
func (o Overrides) options() Options {
	return Options{
		Model:            o.Model,
		MaxTokens:        lo.FromPtr(o.MaxTokens),
		Temperature:      lo.FromPtr(o.Temperature),
		TopP:             lo.FromPtr(o.TopP),
		N:                lo.FromPtr(o.N),
		Stop:             o.Stop,
		PresencePenalty:  lo.FromPtr(o.PresencePenalty),
		FrequencyPenalty: lo.FromPtr(o.FrequencyPenalty),
		BestOf:           lo.FromPtr(o.BestOf),
	}
}

// DefaultOptions returns the defaults for a modality.
func DefaultOptions(m Modality) Options {
	if m == ModalityEmbedding {
		return Options{Model: DefaultEmbeddingModel}
	}
	opts := Options{
		Model:       DefaultChatModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: 1.0,
		TopP:        1,
		N:           1,
	}
	if m == ModalityCompletion {
		opts.BestOf = 1
	}
	return opts
}

// MergeOptions applies overrides onto base. Every non-nil override field
// wins, including explicit zeros; an empty model or stop list keeps base.
func MergeOptions(base Options, overrides Overrides) (Options, error) {
	merged := base.overrides()
	if err := mergo.Merge(&merged, overrides.Clone(), mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return Options{}, fmt.Errorf("failed to merge model options: %w", err)
	}
	return merged.options(), nil
}

// ResolveOptions applies overrides to the modality defaults and validates the result.
func ResolveOptions(m Modality, overrides Overrides) (Options, error) {
	opts, err := MergeOptions(DefaultOptions(m), overrides)
	if err != nil {
		return Options{}, NewInvalidConfigurationError("%v", err)
	}
	if m == ModalityCompletion && opts.Model == LegacyCompletionModel {
		opts.Model = DefaultChatModel
	}
	if err := opts.Validate(m); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the options for a modality.
func (o Options) Validate(m Modality) error {
	if o.Model == "" {
		return NewInvalidConfigurationError("model is required")
	}
	if m == ModalityEmbedding {
		return nil
	}

	switch {
	case o.MaxTokens <= 0:
		return NewInvalidConfigurationError("max_tokens must be positive, got %d", o.MaxTokens)
	case o.Temperature < 0 || o.Temperature > 2:
		return NewInvalidConfigurationError("temperature must be within [0, 2], got %v", o.Temperature)
	case o.TopP < 0 || o.TopP > 1:
		return NewInvalidConfigurationError("top_p must be within [0, 1], got %v", o.TopP)
	case o.N < 1:
		return NewInvalidConfigurationError("n must be at least 1, got %d", o.N)
	case len(o.Stop) > maxStopSequences:
		return NewInvalidConfigurationError("at most %d stop sequences are allowed, got %d", maxStopSequences, len(o.Stop))
	case o.PresencePenalty < -2 || o.PresencePenalty > 2:
		return NewInvalidConfigurationError("presence_penalty must be within [-2, 2], got %v", o.PresencePenalty)
	case o.FrequencyPenalty < -2 || o.FrequencyPenalty > 2:
		return NewInvalidConfigurationError("frequency_penalty must be within [-2, 2], got %v", o.FrequencyPenalty)
	}

	if m == ModalityCompletion && o.BestOf < o.N {
		return NewInvalidConfigurationError("best_of (%d) must be at least n (%d)", o.BestOf, o.N)
	}
	return nil
}

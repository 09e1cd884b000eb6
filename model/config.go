package model

import (
	"fmt"

	"github.com/c360studio/contentmesh/task"
)

// ProfileOverride is the serialized form of a profile. Nil fields keep the
// value of the profile being overridden.
type ProfileOverride struct {
	Description   *string  `json:"description,omitempty" yaml:"description,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopK          *int     `json:"top_k,omitempty" yaml:"top_k,omitempty" validate:"omitempty,gte=0"`
	TopP          *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TokensPerWord *int     `json:"tokens_per_word,omitempty" yaml:"tokens_per_word,omitempty" validate:"omitempty,gte=0"`
	FixedTokens   *int     `json:"fixed_tokens,omitempty" yaml:"fixed_tokens,omitempty" validate:"omitempty,gte=0"`
}

// Apply returns a copy of base with the set fields replaced.
func (o *ProfileOverride) Apply(base Profile) Profile {
	if o == nil {
		return base
	}
	if o.Description != nil {
		base.Description = *o.Description
	}
	if o.Temperature != nil {
		base.Temperature = *o.Temperature
	}
	if o.TopK != nil {
		base.TopK = *o.TopK
	}
	if o.TopP != nil {
		base.TopP = *o.TopP
	}
	if o.TokensPerWord != nil {
		base.TokensPerWord = *o.TokensPerWord
	}
	if o.FixedTokens != nil {
		base.FixedTokens = *o.FixedTokens
	}
	return base
}

// Merge layers other over o. Fields set in other win.
func (o *ProfileOverride) Merge(other *ProfileOverride) *ProfileOverride {
	if o == nil {
		o = &ProfileOverride{}
	}
	if other == nil {
		return o
	}
	merged := *o
	if other.Description != nil {
		merged.Description = other.Description
	}
	if other.Temperature != nil {
		merged.Temperature = other.Temperature
	}
	if other.TopK != nil {
		merged.TopK = other.TopK
	}
	if other.TopP != nil {
		merged.TopP = other.TopP
	}
	if other.TokensPerWord != nil {
		merged.TokensPerWord = other.TokensPerWord
	}
	if other.FixedTokens != nil {
		merged.FixedTokens = other.FixedTokens
	}
	return &merged
}

// OverrideFrom returns an override with every field of p set.
func OverrideFrom(p Profile) *ProfileOverride {
	return &ProfileOverride{
		Description:   &p.Description,
		Temperature:   &p.Temperature,
		TopK:          &p.TopK,
		TopP:          &p.TopP,
		TokensPerWord: &p.TokensPerWord,
		FixedTokens:   &p.FixedTokens,
	}
}

// RegistryConfig is the serialized form of per-kind profile overrides.
// Keys are task kind names.
type RegistryConfig map[string]*ProfileOverride

// MergeFromConfig applies configuration to an existing registry.
// Each override is layered onto the profile currently resolved for its kind.
// Unknown kinds are rejected.
func (r *Registry) MergeFromConfig(cfg RegistryConfig) error {
	for name, o := range cfg {
		kind := task.ParseKind(name)
		if !kind.IsValid() {
			return fmt.Errorf("generation profile for unknown task kind %q", name)
		}
		if o == nil {
			continue
		}
		merged := o.Apply(*r.Resolve(kind))
		if merged.TokensPerWord == 0 && merged.FixedTokens == 0 {
			return fmt.Errorf("generation profile %q needs tokens_per_word or fixed_tokens", name)
		}
		r.SetProfile(kind, &merged)
	}
	return nil
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg := make(RegistryConfig, len(r.profiles))
	for k, v := range r.profiles {
		cfg[string(k)] = OverrideFrom(*v)
	}
	return cfg
}

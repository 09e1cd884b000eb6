// Package model resolves per-task-kind generation settings for the primary
// provider. Instead of hardcoding sampling parameters in each prompt builder,
// resolvers ask the registry for a task kind and target size and get back a
// ready-to-send Generation.
package model

// Generation holds the sampling parameters sent with a single provider call.
type Generation struct {
	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// TopK and TopP are only sent when non-zero.
	TopK int
	TopP float64

	// MaxOutputTokens bounds the response length. 0 uses the provider default.
	MaxOutputTokens int
}

// Profile configures generation for one task kind.
type Profile struct {
	// Description explains what the profile is for.
	Description string `json:"description" yaml:"description"`

	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	TopK        int     `json:"top_k,omitempty" yaml:"top_k" validate:"gte=0"`
	TopP        float64 `json:"top_p,omitempty" yaml:"top_p" validate:"gte=0,lte=1"`

	// TokensPerWord scales the output budget with the task's target size.
	// When zero, or the task has no target size, FixedTokens is used.
	TokensPerWord int `json:"tokens_per_word,omitempty" yaml:"tokens_per_word" validate:"gte=0"`

	// FixedTokens is the output budget for kinds without a size.
	FixedTokens int `json:"fixed_tokens,omitempty" yaml:"fixed_tokens" validate:"gte=0"`
}

// Generation builds the call parameters for a task of the given target size.
func (p *Profile) Generation(targetSize int) Generation {
	temp := p.Temperature
	g := Generation{
		Temperature: &temp,
		TopK:        p.TopK,
		TopP:        p.TopP,
	}
	if p.TokensPerWord > 0 && targetSize > 0 {
		g.MaxOutputTokens = p.TokensPerWord * targetSize
	} else {
		g.MaxOutputTokens = p.FixedTokens
	}
	return g
}

// Package resolve turns a normalized task into generated output, either by
// calling the configured provider once or by filling local templates.
package resolve

import "time"

// Provenance records which path produced a result.
type Provenance string

const (
	ProvenancePrimary  Provenance = "primary"
	ProvenanceFallback Provenance = "fallback"
)

// Result is a successful resolution.
type Result struct {
	// Body is the generated text. Empty for intent parsing.
	Body string

	// Structured is set for intent parsing.
	Structured map[string]any

	Provenance Provenance

	// Confidence is in [0,1].
	Confidence float64

	// Model names the provider model or the local template that produced the result.
	Model string

	GeneratedAt time.Time
}

// Model names reported for locally generated results.
const (
	ModelTemplateFallback  = "template-fallback"
	ModelRuleBasedFallback = "rule-based-fallback"
)

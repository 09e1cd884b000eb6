package resolve

import (
	"time"

	"github.com/c360studio/contentmesh/task"
)

// fallbackConfidences are reported for locally generated content kinds,
// scaled from their fixed quality scores.
var fallbackConfidences = map[task.Kind]float64{
	task.KindContentGeneration: 0.84,
	task.KindSocialPost:        0.88,
	task.KindGeneric:           0.86,
}

// Fallback produces results from local templates and keyword rules.
// It performs no I/O and never fails.
type Fallback struct {
	now func() time.Time
}

// NewFallback creates a fallback resolver.
func NewFallback(opts ...Option) *Fallback {
	o := applyOptions(opts)
	return &Fallback{now: o.now}
}

// Resolve builds a result for t. Output depends only on t apart from
// GeneratedAt and the intent timestamp, which come from the clock.
func (f *Fallback) Resolve(t task.Task) *Result {
	now := f.now()

	if t.Kind == task.KindIntentParse {
		intent := ruleBasedIntent(t.UserID, t.RawInput, now)
		return &Result{
			Structured:  intent.Map(),
			Provenance:  ProvenanceFallback,
			Confidence:  intent.Confidence,
			Model:       ModelRuleBasedFallback,
			GeneratedAt: now,
		}
	}

	var body string
	switch t.Kind {
	case task.KindSocialPost:
		body = socialTemplate(t.Subject)
	default:
		body = fitToTarget(contentTemplate(t.Subject), t.Subject, t.TargetSize)
	}

	return &Result{
		Body:        body,
		Provenance:  ProvenanceFallback,
		Confidence:  fallbackConfidences[t.Kind],
		Model:       ModelTemplateFallback,
		GeneratedAt: now,
	}
}

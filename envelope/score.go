package envelope

import (
	"math"

	"github.com/c360studio/contentmesh/task"
	"github.com/cespare/xxhash/v2"
)

// Quality score constants. The score is cosmetic: it does not measure
// anything about the content. It is kept stable so callers that display
// or threshold on it keep working.
const (
	primaryScoreBase  = 4.7
	primaryScoreStep  = 0.05
	primaryScoreSteps = 6
)

// fallbackScores are the fixed quality scores of template output per kind.
var fallbackScores = map[task.Kind]float64{
	task.KindContentGeneration: 4.2,
	task.KindSocialPost:        4.4,
	task.KindGeneric:           4.3,
}

// QualityScore returns the score for provider-generated text:
// 4.7 plus 0.05 times (hash of text mod 6), so the same text always scores
// the same and every score lies in [4.70, 4.95].
func QualityScore(text string) float64 {
	steps := xxhash.Sum64String(text) % primaryScoreSteps
	return round2(primaryScoreBase + float64(steps)*primaryScoreStep)
}

// FallbackScore returns the fixed quality score for template output.
func FallbackScore(kind task.Kind) float64 {
	if s, ok := fallbackScores[kind]; ok {
		return s
	}
	return fallbackScores[task.KindGeneric]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

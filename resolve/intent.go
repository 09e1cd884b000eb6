package resolve

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default values applied when the provider omits intent fields.
const (
	defaultPrimaryConfidence = 0.8
	fallbackConfidence       = 0.75
	defaultTargetLength      = 800
)

// intentNamespace seeds the deterministic ids of rule-based intents.
var intentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://contentmesh.c360studio.com/intent"))

// timestampLayout is the UTC layout used in result timestamps.
const timestampLayout = "2006-01-02T15:04:05Z"

// Intent is a parsed workflow intent.
type Intent struct {
	ID            string
	UserID        string
	WorkflowType  string
	Confidence    float64
	Topic         string
	Title         string
	Requirements  []string
	OriginalInput string
	Functions     []IntentFunction
	RealAIParsing bool
	ModelUsed     string
	FallbackUsed  bool
	Timestamp     time.Time
}

// IntentFunction is a downstream call suggested for an intent.
type IntentFunction struct {
	ID                string
	Name              string
	Description       string
	Parameters        map[string]any
	Provider          string
	EstimatedDuration int
	ConfidenceScore   float64
}

// Map renders the intent in its wire shape.
func (i *Intent) Map() map[string]any {
	requirements := i.Requirements
	if requirements == nil {
		requirements = []string{}
	}

	functions := make([]map[string]any, 0, len(i.Functions))
	for _, f := range i.Functions {
		functions = append(functions, map[string]any{
			"id":                 f.ID,
			"name":               f.Name,
			"description":        f.Description,
			"parameters":         f.Parameters,
			"provider":           f.Provider,
			"estimated_duration": f.EstimatedDuration,
			"confidence_score":   f.ConfidenceScore,
		})
	}

	m := map[string]any{
		"intent_id":     i.ID,
		"user_id":       i.UserID,
		"workflow_type": i.WorkflowType,
		"confidence":    i.Confidence,
		"parsed_intent": map[string]any{
			"topic":          i.Topic,
			"title":          i.Title,
			"requirements":   requirements,
			"original_input": i.OriginalInput,
		},
		"functions":       functions,
		"real_ai_parsing": i.RealAIParsing,
		"model_used":      i.ModelUsed,
		"timestamp":       i.Timestamp.UTC().Format(timestampLayout),
	}
	if i.FallbackUsed {
		m["fallback_used"] = true
	}
	return m
}

// ruleBasedIntent classifies input by keyword. The ids are derived from the
// user and input so the same request always yields the same intent.
func ruleBasedIntent(userID, input string, now time.Time) *Intent {
	workflow := ClassifyIntent(input)
	intentID := uuid.NewSHA1(intentNamespace, []byte(userID+"\x00"+input))
	name := FunctionForWorkflow(workflow)

	return &Intent{
		ID:            intentID.String(),
		UserID:        userID,
		WorkflowType:  workflow,
		Confidence:    fallbackConfidence,
		Topic:         input,
		Title:         "Content about: " + input,
		OriginalInput: input,
		Functions: []IntentFunction{{
			ID:          uuid.NewSHA1(intentID, []byte(name)).String(),
			Name:        name,
			Description: fmt.Sprintf("Generate %s content", strings.ReplaceAll(workflow, "-", " ")),
			Parameters: map[string]any{
				"title":        "Generated content: " + input,
				"topic":        input,
				"content_type": strings.SplitN(workflow, "-", 2)[0],
			},
			Provider:          "fallback",
			EstimatedDuration: 20,
			ConfidenceScore:   fallbackConfidence,
		}},
		RealAIParsing: false,
		ModelUsed:     ModelRuleBasedFallback,
		FallbackUsed:  true,
		Timestamp:     now,
	}
}

// providerIntent is the JSON object the provider is asked to return.
type providerIntent struct {
	WorkflowType string   `mapstructure:"workflow_type"`
	Topic        string   `mapstructure:"topic"`
	Title        string   `mapstructure:"title"`
	Requirements []string `mapstructure:"requirements"`
	Confidence   *float64 `mapstructure:"confidence"`
}

// intentFromProvider fills defaults for fields the provider left out.
func intentFromProvider(p providerIntent, userID, input, modelName string, now time.Time) *Intent {
	workflow := strings.TrimSpace(p.WorkflowType)
	if workflow == "" {
		workflow = WorkflowBlogPost
	}
	topic := strings.TrimSpace(p.Topic)
	if topic == "" {
		topic = input
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Content about: " + input
	}
	confidence := defaultPrimaryConfidence
	if p.Confidence != nil {
		confidence = clamp01(*p.Confidence)
	}

	return &Intent{
		ID:            uuid.NewString(),
		UserID:        userID,
		WorkflowType:  workflow,
		Confidence:    confidence,
		Topic:         topic,
		Title:         title,
		Requirements:  p.Requirements,
		OriginalInput: input,
		Functions: []IntentFunction{{
			ID:          uuid.NewString(),
			Name:        FunctionForWorkflow(workflow),
			Description: fmt.Sprintf("Generate %s content", strings.ReplaceAll(workflow, "-", " ")),
			Parameters: map[string]any{
				"title":         title,
				"topic":         topic,
				"content_type":  contentTypeForWorkflow(workflow),
				"target_length": defaultTargetLength,
			},
			Provider:          "content-router",
			EstimatedDuration: 30,
			ConfidenceScore:   confidence,
		}},
		RealAIParsing: true,
		ModelUsed:     modelName,
		Timestamp:     now,
	}
}

func contentTypeForWorkflow(workflow string) string {
	switch workflow {
	case WorkflowBlogPost:
		return "blog_post"
	case WorkflowImage:
		return "image"
	default:
		return "generic"
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

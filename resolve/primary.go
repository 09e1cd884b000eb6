package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/contentmesh/llm"
	"github.com/c360studio/contentmesh/model"
	"github.com/c360studio/contentmesh/task"
	"github.com/go-viper/mapstructure/v2"
)

// Generator performs a single provider call. *llm.Client implements it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Primary resolves tasks through the configured provider.
// Every error it returns is an *llm.Failure.
type Primary struct {
	gen      Generator
	profiles *model.Registry
	now      func() time.Time
	logger   *slog.Logger
}

// NewPrimary creates a primary resolver. A nil registry uses the defaults.
func NewPrimary(gen Generator, profiles *model.Registry, opts ...Option) *Primary {
	if profiles == nil {
		profiles = model.NewDefaultRegistry()
	}
	o := applyOptions(opts)
	return &Primary{
		gen:      gen,
		profiles: profiles,
		now:      o.now,
		logger:   o.logger,
	}
}

// Resolve makes one provider call for t. It never substitutes placeholder
// output: anything short of usable text or a parseable intent is a failure.
func (p *Primary) Resolve(ctx context.Context, t task.Task) (*Result, error) {
	if p.gen == nil {
		return nil, llm.NewFailure(llm.ReasonMissingCredentials, errors.New("no provider configured"))
	}

	req := llm.Request{
		System:     SystemForTask(t),
		Prompt:     PromptForTask(t),
		Generation: p.profiles.Generation(t.Kind, t.TargetSize),
	}

	resp, err := p.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := p.now()

	if t.Kind == task.KindIntentParse {
		parsed, err := parseProviderIntent(resp.Content)
		if err != nil {
			return nil, llm.NewFailure(llm.ReasonMalformedUpstreamBody, err)
		}
		intent := intentFromProvider(parsed, t.UserID, t.RawInput, resp.Model, now)
		p.logger.Debug("Parsed intent from provider",
			"workflow_type", intent.WorkflowType,
			"confidence", intent.Confidence)
		return &Result{
			Structured:  intent.Map(),
			Provenance:  ProvenancePrimary,
			Confidence:  intent.Confidence,
			Model:       resp.Model,
			GeneratedAt: now,
		}, nil
	}

	body := stripCodeFence(resp.Content)
	if body == "" {
		return nil, llm.NewFailure(llm.ReasonMalformedUpstreamBody, errors.New("empty content after cleanup"))
	}

	return &Result{
		Body:        body,
		Provenance:  ProvenancePrimary,
		Confidence:  1,
		Model:       resp.Model,
		GeneratedAt: now,
	}, nil
}

// parseProviderIntent locates the first balanced JSON object in content and
// decodes it leniently.
func parseProviderIntent(content string) (providerIntent, error) {
	var out providerIntent

	raw := llm.ExtractJSON(content)
	if raw == "" {
		return out, errors.New("no JSON object in response")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return out, fmt.Errorf("parse intent JSON: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, fmt.Errorf("create intent decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return out, fmt.Errorf("decode intent: %w", err)
	}
	return out, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// often add around HTML despite being asked not to.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

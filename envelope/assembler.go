package envelope

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/contentmesh/llm"
	"github.com/c360studio/contentmesh/resolve"
	"github.com/c360studio/contentmesh/task"
	"github.com/gosimple/slug"
)

// timestampLayout is the UTC layout used in metadata timestamps.
const timestampLayout = "2006-01-02T15:04:05Z"

// Assembler builds envelopes from resolver output.
type Assembler struct {
	now      func() time.Time
	renderer *Renderer
	logger   *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock sets the time source used for execution time.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		now:      time.Now,
		renderer: NewRenderer(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds a completed envelope from res. primaryErr is the primary
// failure that caused a fallback, or nil. A nil res yields an internal
// fault envelope carrying primaryErr.
func (a *Assembler) Assemble(rc task.RequestContext, res *resolve.Result, primaryErr error) *Envelope {
	if res == nil {
		err := primaryErr
		if err == nil {
			err = errors.New("no result produced")
		}
		return a.Error(rc, ErrorInternalFault, err)
	}

	t := rc.Task
	env := &Envelope{
		ExecutionID: rc.ExecutionID,
		Status:      StatusCompleted,
		Kind:        t.Kind,
		Provenance:  res.Provenance,
	}

	r := Result{
		Metadata: a.metadata(rc, res),
	}

	if t.Kind == task.KindIntentParse {
		r.Structured = res.Structured
		confidence := res.Confidence
		r.Confidence = &confidence
	} else {
		a.fillContent(&r, t, res)
	}

	if res.Provenance == resolve.ProvenanceFallback {
		r.FallbackUsed = true
		reason := llm.ReasonMissingCredentials
		if primaryErr != nil {
			reason = llm.ReasonOf(primaryErr)
		}
		r.Metadata["failure_reason"] = string(reason)
		env.Warning = fallbackWarning(t.Kind, reason)
	}

	r.ExecutionTimeMS = rc.Elapsed(a.now()).Milliseconds()
	env.Result = r
	return env
}

// fillContent sets the content fields for generation kinds.
func (a *Assembler) fillContent(r *Result, t task.Task, res *resolve.Result) {
	content := res.Body

	title := t.Title
	if title == "" {
		title = ExtractTitle(content)
	}
	if title == "" {
		title = t.Subject
	}
	r.Title = title
	if t.Kind == task.KindContentGeneration {
		r.Slug = slug.Make(title)
	}

	if t.Format == task.FormatMarkdown {
		markdown, err := a.renderer.Markdown(content)
		if err != nil {
			a.logger.Warn("Markdown conversion failed, returning HTML", "error", err)
		} else {
			content = markdown
			r.Format = string(task.FormatMarkdown)
		}
	}
	r.Content = content

	words := len(strings.Fields(content))
	r.WordCount = &words

	var score float64
	if res.Provenance == resolve.ProvenancePrimary {
		score = QualityScore(res.Body)
	} else {
		score = FallbackScore(t.Kind)
	}
	r.QualityScore = &score
}

func (a *Assembler) metadata(rc task.RequestContext, res *resolve.Result) map[string]any {
	m := map[string]any{
		"ai_generated": res.Provenance == resolve.ProvenancePrimary,
		"provenance":   string(res.Provenance),
		"service":      rc.Service,
		"model":        res.Model,
		"timestamp":    res.GeneratedAt.UTC().Format(timestampLayout),
	}
	if ct := contentType(rc.Task); ct != "" {
		m["content_type"] = ct
	}
	return m
}

// Error builds an error envelope. The execution id carries the error prefix.
func (a *Assembler) Error(rc task.RequestContext, kind ErrorKind, err error) *Envelope {
	score := 0.0
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Envelope{
		ExecutionID: rc.ErrorID(),
		Status:      StatusError,
		Error:       msg,
		ErrorKind:   kind,
		Kind:        rc.Kind,
		Result: Result{
			QualityScore:    &score,
			ExecutionTimeMS: rc.Elapsed(a.now()).Milliseconds(),
		},
	}
}

// contentType reports the requested content type, or the one implied by the kind.
func contentType(t task.Task) string {
	if t.ContentType != "" {
		return t.ContentType
	}
	switch t.Kind {
	case task.KindContentGeneration:
		return task.ContentTypeBlogPost
	case task.KindSocialPost:
		return task.ContentTypeSocialMedia
	case task.KindGeneric:
		return task.ContentTypeGeneric
	default:
		return ""
	}
}

func fallbackWarning(kind task.Kind, reason llm.FailureReason) string {
	if kind == task.KindIntentParse {
		return fmt.Sprintf("Using fallback intent parsing: primary provider %s", reason)
	}
	return fmt.Sprintf("Using fallback content generation: primary provider %s", reason)
}

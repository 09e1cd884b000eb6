package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/contentmesh/llm"
	"github.com/c360studio/contentmesh/resolve"
	"github.com/c360studio/contentmesh/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var received = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestAssembler() *Assembler {
	return NewAssembler(WithClock(func() time.Time { return received.Add(1250 * time.Millisecond) }))
}

func requestFor(t task.Task) task.RequestContext {
	return task.NewRequestContext(t.Kind, "mcp-manager", received).WithTask(t)
}

func decode(t *testing.T, env *Envelope) map[string]any {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestAssemble_PrimaryContent(t *testing.T) {
	a := newTestAssembler()
	tk := task.Task{Kind: task.KindContentGeneration, Subject: "edge computing", RawInput: "edge computing", TargetSize: 800}
	rc := requestFor(tk)
	body := "<h2>Edge Computing: <em>Closer</em> to Users</h2><p>Latency matters.</p>"

	env := a.Assemble(rc, &resolve.Result{
		Body:        body,
		Provenance:  resolve.ProvenancePrimary,
		Confidence:  1,
		Model:       "gemini-2.0-flash",
		GeneratedAt: received,
	}, nil)

	assert.Equal(t, StatusCompleted, env.Status)
	assert.Equal(t, rc.ExecutionID, env.ExecutionID)
	assert.True(t, strings.HasPrefix(env.ExecutionID, "content_"))
	assert.Empty(t, env.Warning)
	assert.Equal(t, http.StatusOK, env.HTTPStatus())

	r := env.Result
	assert.Equal(t, body, r.Content)
	assert.Equal(t, "Edge Computing: Closer to Users", r.Title)
	assert.Equal(t, "edge-computing-closer-to-users", r.Slug)
	require.NotNil(t, r.WordCount)
	assert.Equal(t, len(strings.Fields(body)), *r.WordCount)
	require.NotNil(t, r.QualityScore)
	assert.Equal(t, QualityScore(body), *r.QualityScore)
	assert.Nil(t, r.Confidence)
	assert.False(t, r.FallbackUsed)
	assert.Equal(t, int64(1250), r.ExecutionTimeMS)

	assert.Equal(t, true, r.Metadata["ai_generated"])
	assert.Equal(t, "primary", r.Metadata["provenance"])
	assert.Equal(t, "gemini-2.0-flash", r.Metadata["model"])
	assert.Equal(t, "blog_post", r.Metadata["content_type"])
	assert.Equal(t, "mcp-manager", r.Metadata["service"])
	assert.Equal(t, "2026-05-04T09:30:00Z", r.Metadata["timestamp"])
	assert.NotContains(t, r.Metadata, "failure_reason")
}

func TestAssemble_FallbackAfterBadStatus(t *testing.T) {
	a := newTestAssembler()
	tk := task.Task{Kind: task.KindSocialPost, Subject: "rust", RawInput: "rust"}
	failure := &llm.Failure{Reason: llm.ReasonBadUpstreamStatus, StatusCode: 429}

	env := a.Assemble(requestFor(tk), &resolve.Result{
		Body:        "Exciting insights on rust!",
		Provenance:  resolve.ProvenanceFallback,
		Model:       resolve.ModelTemplateFallback,
		GeneratedAt: received,
	}, failure)

	assert.Equal(t, StatusCompleted, env.Status)
	assert.Equal(t, "Using fallback content generation: primary provider bad_upstream_status", env.Warning)
	assert.True(t, env.Result.FallbackUsed)
	assert.Equal(t, 4.4, *env.Result.QualityScore)
	assert.Equal(t, "rust", env.Result.Title)
	assert.Empty(t, env.Result.Slug, "only blog content gets a slug")
	assert.Equal(t, "bad_upstream_status", env.Result.Metadata["failure_reason"])
	assert.Equal(t, false, env.Result.Metadata["ai_generated"])
	assert.Equal(t, "social_media", env.Result.Metadata["content_type"])
}

func TestAssemble_FallbackWithoutFailureIsMissingCredentials(t *testing.T) {
	a := newTestAssembler()
	tk := task.Task{Kind: task.KindGeneric, Subject: "x", RawInput: "x", TargetSize: 600}

	env := a.Assemble(requestFor(tk), &resolve.Result{Body: "<p>x</p>", Provenance: resolve.ProvenanceFallback}, nil)
	assert.Contains(t, env.Warning, "missing_credentials")
	assert.Equal(t, 4.3, *env.Result.QualityScore)
}

func TestAssemble_IntentFlattened(t *testing.T) {
	a := newTestAssembler()
	tk := task.Task{Kind: task.KindIntentParse, Subject: "write a blog", RawInput: "write a blog", UserID: "u1"}
	fb := resolve.NewFallback(resolve.WithClock(func() time.Time { return received }))
	res := fb.Resolve(tk)

	env := a.Assemble(requestFor(tk), res, llm.NewFailure(llm.ReasonTimeout, errors.New("deadline")))
	assert.Equal(t, "Using fallback intent parsing: primary provider timeout", env.Warning)

	out := decode(t, env)
	assert.True(t, strings.HasPrefix(out["execution_id"].(string), "intent_"))
	result := out["result"].(map[string]any)
	assert.Equal(t, "blog-post-generation", result["workflow_type"])
	assert.Equal(t, 0.75, result["confidence"])
	assert.NotContains(t, result, "quality_score")
	assert.NotContains(t, result, "word_count")
	assert.Equal(t, true, result["fallback_used"])
	assert.Contains(t, result, "intent_id")
	assert.Contains(t, result, "functions")
	assert.Contains(t, result, "execution_time_ms")
}

func TestAssemble_Markdown(t *testing.T) {
	a := newTestAssembler()
	tk := task.Task{
		Kind:     task.KindContentGeneration,
		Subject:  "go",
		RawInput: "go",
		Format:   task.FormatMarkdown,
		Title:    "Custom Title",
	}

	env := a.Assemble(requestFor(tk), &resolve.Result{
		Body:       "<h2>Go</h2><p>Simple <strong>and</strong> fast.</p>",
		Provenance: resolve.ProvenancePrimary,
	}, nil)

	assert.Equal(t, "markdown", env.Result.Format)
	assert.Contains(t, env.Result.Content, "## Go")
	assert.Contains(t, env.Result.Content, "**and**")
	assert.Equal(t, "Custom Title", env.Result.Title, "explicit title wins")
	assert.Equal(t, "custom-title", env.Result.Slug)
}

func TestAssembler_Error(t *testing.T) {
	a := newTestAssembler()
	rc := task.NewRequestContext(task.KindIntentParse, "intent-parser", received)

	env := a.Error(rc, ErrorInvalidRequest, &task.InvalidRequestError{Field: "input", Message: "Missing 'input' or 'text' field"})
	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, rc.ErrorID(), env.ExecutionID)
	assert.True(t, strings.HasPrefix(env.ExecutionID, "error_"))
	assert.Equal(t, http.StatusBadRequest, env.HTTPStatus())

	out := decode(t, env)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "invalid_request", out["error_kind"])
	assert.Contains(t, out["error"], "Missing 'input' or 'text' field")
	result := out["result"].(map[string]any)
	assert.Equal(t, 0.0, result["quality_score"])
	assert.Equal(t, 1250.0, result["execution_time_ms"])

	fault := a.Error(rc, ErrorInternalFault, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, fault.HTTPStatus())
}

func TestAssemble_NilResultIsInternalFault(t *testing.T) {
	a := newTestAssembler()
	tk := task.Task{Kind: task.KindContentGeneration, Subject: "x", RawInput: "x"}

	env := a.Assemble(requestFor(tk), nil, llm.NewFailure(llm.ReasonTimeout, errors.New("deadline")))
	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, ErrorInternalFault, env.ErrorKind)
	assert.Contains(t, env.Error, "timeout")
}

func TestResultMarshal_NamedFieldsWin(t *testing.T) {
	c := 0.5
	r := Result{
		Structured: map[string]any{"confidence": 0.9, "extra": "kept"},
		Confidence: &c,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 0.5, out["confidence"])
	assert.Equal(t, "kept", out["extra"])
}

// Package envelope builds the uniform response returned for every request,
// whichever path produced the result.
package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/c360studio/contentmesh/resolve"
	"github.com/c360studio/contentmesh/task"
)

// Status is the envelope outcome.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ErrorKind classifies caller-visible errors.
type ErrorKind string

const (
	ErrorInvalidRequest ErrorKind = "invalid_request"
	ErrorInternalFault  ErrorKind = "internal_fault"
)

// Envelope is the response for one request.
type Envelope struct {
	ExecutionID string    `json:"execution_id"`
	Status      Status    `json:"status"`
	Result      Result    `json:"result"`
	Warning     string    `json:"warning,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`

	// Kind and Provenance are kept for metrics and event subjects.
	Kind       task.Kind          `json:"-"`
	Provenance resolve.Provenance `json:"-"`
}

// Result holds the generated output and its metadata.
// Structured fields of intent results are flattened into the JSON object.
type Result struct {
	Content    string         `json:"content,omitempty"`
	Structured map[string]any `json:"-"`

	Title  string `json:"title,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Format string `json:"format,omitempty"`

	WordCount *int `json:"word_count,omitempty"`

	// Content kinds report QualityScore, intent parsing reports Confidence.
	// The two are on different scales.
	QualityScore *float64 `json:"quality_score,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`

	ExecutionTimeMS int64          `json:"execution_time_ms"`
	FallbackUsed    bool           `json:"fallback_used,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// resultFields avoids recursion in MarshalJSON.
type resultFields Result

// MarshalJSON merges Structured into the result object. Named fields win
// over structured keys of the same name.
func (r Result) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(resultFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.Structured) == 0 {
		return base, nil
	}

	merged := make(map[string]any, len(r.Structured)+8)
	for k, v := range r.Structured {
		merged[k] = v
	}
	var named map[string]any
	if err := json.Unmarshal(base, &named); err != nil {
		return nil, err
	}
	for k, v := range named {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// HTTPStatus maps the envelope to a response status code.
func (e *Envelope) HTTPStatus() int {
	if e.Status == StatusCompleted {
		return http.StatusOK
	}
	if e.ErrorKind == ErrorInvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

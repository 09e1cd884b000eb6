package task

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Format selects how content results are rendered.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Task is the canonical, kind-tagged representation of an inbound request.
// Subject and RawInput are never empty once produced by Normalize.
type Task struct {
	Kind    Kind   `json:"task_kind"`
	Subject string `json:"subject"`

	// TargetSize is the requested size in words. Zero means the kind has no size.
	TargetSize int `json:"target_size,omitempty"`

	UserID   string `json:"user_id"`
	RawInput string `json:"raw_input"`

	ContentType string `json:"content_type,omitempty"`
	Format      Format `json:"format,omitempty"`
	Title       string `json:"title,omitempty"`
}

// RequestContext carries everything known about one inbound request.
// It is built once when the request arrives and passed by value through the
// resolvers and the assembler; nothing in it changes after construction
// other than attaching the normalized task via WithTask.
type RequestContext struct {
	ExecutionID string
	ReceivedAt  time.Time
	Kind        Kind
	Task        Task

	// Service names the deployment profile handling the request.
	Service string

	requestID string
}

// NewRequestContext creates a context with a fresh execution id.
func NewRequestContext(kind Kind, service string, receivedAt time.Time) RequestContext {
	id := uuid.New()
	suffix := idHex(id)
	return RequestContext{
		ExecutionID: kind.IDPrefix() + "_" + suffix,
		ReceivedAt:  receivedAt,
		Kind:        kind,
		Service:     service,
		requestID:   suffix,
	}
}

// WithTask returns a copy of the context carrying the normalized task.
func (rc RequestContext) WithTask(t Task) RequestContext {
	rc.Task = t
	return rc
}

// ErrorID returns the execution id used when the request ends in an error.
// It shares the request's unique suffix so logs can be correlated.
func (rc RequestContext) ErrorID() string {
	if rc.requestID == "" {
		return "error_" + idHex(uuid.New())
	}
	return "error_" + rc.requestID
}

// Elapsed returns the time since the request was received.
func (rc RequestContext) Elapsed(now time.Time) time.Duration {
	return now.Sub(rc.ReceivedAt)
}

func idHex(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureReason classifies why a provider call produced no usable output.
type FailureReason string

const (
	ReasonTimeout               FailureReason = "timeout"
	ReasonTransportError        FailureReason = "transport_error"
	ReasonBadUpstreamStatus     FailureReason = "bad_upstream_status"
	ReasonMalformedUpstreamBody FailureReason = "malformed_upstream_body"
	ReasonMissingCredentials    FailureReason = "missing_credentials"
)

// Failure is the error returned by Client.Generate.
type Failure struct {
	Reason FailureReason

	// StatusCode and Body are set for bad_upstream_status.
	StatusCode int
	Body       string

	err error
}

func (f *Failure) Error() string {
	if f.err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.err)
}

func (f *Failure) Unwrap() error {
	return f.err
}

// NewFailure wraps err with a failure reason.
func NewFailure(reason FailureReason, err error) error {
	return &Failure{Reason: reason, err: err}
}

// ReasonOf returns the failure reason carried by err.
// Errors that are not a *Failure are reported as transport errors.
func ReasonOf(err error) FailureReason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ReasonTransportError
}

// classifyTransportError separates deadline expiry from other transport failures.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFailure(ReasonTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewFailure(ReasonTimeout, err)
	}
	return NewFailure(ReasonTransportError, err)
}

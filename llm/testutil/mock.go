// Package testutil provides test utilities for the llm package.
// It includes a recording HTTP transport and Gemini response builders
// for exercising the client without a real provider.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

// RecordingTransport is a thread-safe http.RoundTripper that counts calls
// and replays configured responses.
//
// Usage:
//
//	rt := &testutil.RecordingTransport{
//	    Responses: []testutil.Reply{testutil.GeminiText("<h1>Hi</h1>")},
//	}
//	client := llm.NewClient(cfg, llm.WithHTTPClient(&http.Client{Transport: rt}))
type RecordingTransport struct {
	// Responses are returned in sequence. The last one repeats.
	Responses []Reply

	// Err is returned for every call when set.
	Err error

	calls    atomic.Int64
	mu       sync.Mutex
	requests []RecordedRequest
}

// Reply is a canned HTTP response.
type Reply struct {
	Status int
	Body   []byte
}

// RecordedRequest captures what the client sent.
type RecordedRequest struct {
	URL    string
	Header http.Header
	Body   []byte
}

// RoundTrip implements http.RoundTripper.
func (t *RecordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := t.calls.Add(1)

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	t.mu.Lock()
	t.requests = append(t.requests, RecordedRequest{
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	t.mu.Unlock()

	if t.Err != nil {
		return nil, t.Err
	}
	if len(t.Responses) == 0 {
		return reply(req, Reply{Status: http.StatusOK, Body: GeminiText("ok").Body}), nil
	}

	idx := int(n) - 1
	if idx >= len(t.Responses) {
		idx = len(t.Responses) - 1
	}
	return reply(req, t.Responses[idx]), nil
}

// Calls returns the number of round trips made.
func (t *RecordingTransport) Calls() int {
	return int(t.calls.Load())
}

// Requests returns a copy of the recorded requests.
func (t *RecordingTransport) Requests() []RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

func reply(req *http.Request, r Reply) *http.Response {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(r.Body)),
		Request:    req,
	}
}

// GeminiText builds a successful generateContent response carrying text.
func GeminiText(text string) Reply {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]int{
			"promptTokenCount":     10,
			"candidatesTokenCount": 20,
			"totalTokenCount":      30,
		},
		"modelVersion": "gemini-2.0-flash",
	})
	return Reply{Status: http.StatusOK, Body: body}
}

// GeminiStatus builds an error response with the given status.
func GeminiStatus(status int, message string) Reply {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
	return Reply{Status: status, Body: body}
}

// Raw builds a 200 response with an arbitrary body.
func Raw(body string) Reply {
	return Reply{Status: http.StatusOK, Body: []byte(body)}
}

// Package main implements a mock generation provider for local and e2e runs.
// It serves Gemini-compatible generateContent responses from fixture files,
// routing by the model named in the request path. Pointing PROVIDER_ENDPOINT
// at it exercises the primary path without a real API key.
//
// Usage:
//
//	mock-llm -fixtures /path/to/fixtures -port 9090
//	PROVIDER_ENDPOINT=http://localhost:9090/v1beta GEMINI_API_KEY=mock contentmesh
//
// Fixture files are named by model (e.g., "gemini-2.0-flash.html" maps to
// model "gemini-2.0-flash"). Files ending in .txt, .html or .json are returned
// as the generated text. A file ending in .status holds an HTTP status code
// and makes the call fail with a Gemini error body, which drives the caller
// onto its fallback path.
//
// Sequential fixtures: If numbered files exist (e.g., "gemini-2.0-flash.1.status",
// "gemini-2.0-flash.2.html"), the Nth call to that model returns the Nth fixture.
// After exhausting numbered fixtures, the base file is used as a repeating
// fallback.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- Gemini-compatible types ---

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
	Index        int     `json:"index"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// fixture is one canned reply: generated text, or a failing status.
type fixture struct {
	Text   string
	Status int
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for test verification.
type capturedRequest struct {
	Model           string   `json:"model"`
	System          string   `json:"system,omitempty"`
	Prompt          string   `json:"prompt"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	Temperature     *float64 `json:"temperature,omitempty"`
	CallIndex       int      `json:"call_index"` // 1-indexed per-model call number
	Timestamp       int64    `json:"timestamp"`
}

type server struct {
	fixtures map[string][]fixture // model name → ordered fixtures (sequential)
	calls    atomic.Int64         // total calls served

	// Per-model call counters for sequential fixture selection.
	modelCalls   map[string]*atomic.Int64
	modelCallsMu sync.Mutex // protects lazy init of modelCalls entries

	// Per-model request capture for prompt verification.
	modelRequests   map[string][]capturedRequest
	modelRequestsMu sync.Mutex
}

func newServer(fixtures map[string][]fixture) *server {
	return &server{
		fixtures:      fixtures,
		modelCalls:    make(map[string]*atomic.Int64),
		modelRequests: make(map[string][]capturedRequest),
	}
}

func (s *server) captureRequest(model string, req generateRequest, callIndex int) {
	captured := capturedRequest{
		Model:     model,
		Prompt:    joinParts(req.Contents),
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	}
	if req.SystemInstruction != nil {
		captured.System = joinParts([]content{*req.SystemInstruction})
	}
	if req.GenerationConfig != nil {
		captured.MaxOutputTokens = req.GenerationConfig.MaxOutputTokens
		captured.Temperature = req.GenerationConfig.Temperature
	}

	s.modelRequestsMu.Lock()
	defer s.modelRequestsMu.Unlock()
	s.modelRequests[model] = append(s.modelRequests[model], captured)
}

func joinParts(contents []content) string {
	var b strings.Builder
	for _, c := range contents {
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// getModelCounter returns the call counter for a model, creating it lazily.
func (s *server) getModelCounter(model string) *atomic.Int64 {
	s.modelCallsMu.Lock()
	defer s.modelCallsMu.Unlock()
	if c, ok := s.modelCalls[model]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.modelCalls[model] = c
	return c
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1beta/models/", s.handleGenerate)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	return mux
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 9090, "port to listen on")
	flag.Parse()

	// Allow env var override
	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}

	fixtures, err := loadFixtures(*fixtureDir)
	if err != nil {
		log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
	}
	log.Printf("Loaded %d model(s) from %s", len(fixtures), *fixtureDir)
	for model, seq := range fixtures {
		log.Printf("  model: %s (%d fixture(s))", model, len(seq))
	}

	s := newServer(fixtures)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock LLM server listening on %s", addr)
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleGenerate serves POST /v1beta/models/{model}:generateContent.
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	model, action, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/v1beta/models/"), ":")
	if !ok || action != "generateContent" || model == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unsupported path %q", r.URL.Path))
		return
	}
	if r.Header.Get("x-goog-api-key") == "" {
		writeError(w, http.StatusUnauthorized, "API key not valid. Please pass a valid API key.")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	callNum := s.calls.Add(1)
	log.Printf("[call %d] model=%s contents=%d", callNum, model, len(req.Contents))

	// Resolve fixture sequence: try exact model name, then strip "mock-" prefix
	seq, ok := s.fixtures[model]
	if !ok {
		seq, ok = s.fixtures[strings.TrimPrefix(model, "mock-")]
	}
	if !ok {
		log.Printf("[call %d] WARNING: no fixture for model=%q, returning error", callNum, model)
		writeError(w, http.StatusNotFound, fmt.Sprintf("models/%s is not found", model))
		return
	}

	counter := s.getModelCounter(model)
	callIndex := int(counter.Add(1) - 1) // 0-indexed

	s.captureRequest(model, req, callIndex+1)
	var fx fixture
	if callIndex < len(seq) {
		fx = seq[callIndex]
	} else {
		fx = seq[len(seq)-1] // repeat last fixture
	}

	log.Printf("[call %d] model=%s call_index=%d/%d", callNum, model, callIndex+1, len(seq))

	if fx.Status != 0 {
		writeError(w, fx.Status, fmt.Sprintf("mock failure for model %s", model))
		return
	}

	promptTokens := len(joinParts(req.Contents)) / 4 // rough estimate
	completionTokens := len(fx.Text) / 4
	resp := generateResponse{
		Candidates: []candidate{
			{
				Content:      content{Role: "model", Parts: []part{{Text: fx.Text}}},
				FinishReason: "STOP",
			},
		},
		UsageMetadata: usageMetadata{
			PromptTokenCount:     promptTokens,
			CandidatesTokenCount: completionTokens,
			TotalTokenCount:      promptTokens + completionTokens,
		},
		ModelVersion: model,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
	log.Printf("[call %d] responded with %d bytes for model=%s", callNum, len(fx.Text), model)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{
		Code:    status,
		Message: message,
		Status:  strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
	}})
}

// handleStats returns call counts for test assertions.
// Returns total_calls and per-model calls_by_model breakdown.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.modelCallsMu.Lock()
	callsByModel := make(map[string]int64, len(s.modelCalls))
	for model, counter := range s.modelCalls {
		callsByModel[model] = counter.Load()
	}
	s.modelCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": callsByModel,
	})
}

// handleRequests returns captured requests for test assertions.
// Query params:
//   - model: filter by model name (optional, returns all models if omitted)
//   - call: filter by call index, 1-indexed (optional)
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter := r.URL.Query().Get("call")

	s.modelRequestsMu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.modelRequests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		if callFilter != "" {
			callIdx, err := strconv.Atoi(callFilter)
			if err == nil {
				for _, req := range reqs {
					if req.CallIndex == callIdx {
						result[model] = append(result[model], req)
					}
				}
				continue
			}
		}
		result[model] = reqs
	}
	s.modelRequestsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests_by_model": result,
	})
}

// fixtureFileRe matches "model.ext" and "model.N.ext".
var fixtureFileRe = regexp.MustCompile(`^(.+?)(?:\.(\d+))?\.(txt|html|json|status)$`)

// loadFixtures reads fixture files from dir and returns a map of model→fixture sequence.
//
// For each model, fixtures are ordered:
//  1. Numbered files (model.1.html, model.2.status, ...) in numeric order
//  2. Base file (model.html) appended as the final fallback
func loadFixtures(dir string) (map[string][]fixture, error) {
	baseFiles := make(map[string]fixture)             // model → fixture
	numberedFiles := make(map[string]map[int]fixture) // model → {index → fixture}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		matches := fixtureFileRe.FindStringSubmatch(info.Name())
		if matches == nil {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		fx, err := parseFixture(matches[3], data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		model := matches[1]
		if matches[2] != "" {
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[model] == nil {
				numberedFiles[model] = make(map[int]fixture)
			}
			numberedFiles[model][index] = fx
			return nil
		}

		baseFiles[model] = fx
		return nil
	})

	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]fixture)

	allModels := make(map[string]bool)
	for m := range baseFiles {
		allModels[m] = true
	}
	for m := range numberedFiles {
		allModels[m] = true
	}

	for model := range allModels {
		var seq []fixture

		if numbered, ok := numberedFiles[model]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)

			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}

		if base, ok := baseFiles[model]; ok {
			seq = append(seq, base)
		}

		if len(seq) > 0 {
			fixtures[model] = seq
		}
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}

	return fixtures, nil
}

func parseFixture(ext string, data []byte) (fixture, error) {
	switch ext {
	case "status":
		code, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || code < 400 || code > 599 {
			return fixture{}, fmt.Errorf("status fixture must hold a 4xx or 5xx code, got %q", strings.TrimSpace(string(data)))
		}
		return fixture{Status: code}, nil
	case "json":
		if !json.Valid(data) {
			return fixture{}, errors.New("invalid JSON")
		}
	}
	return fixture{Text: string(data)}, nil
}

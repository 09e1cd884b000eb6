// Package providers implements LLM provider adapters.
package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/contentmesh/llm"
	"github.com/tidwall/gjson"
)

// GeminiProvider implements the Google Generative Language generateContent API.
type GeminiProvider struct{}

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-2.0-flash"
)

func init() {
	llm.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// DefaultModel returns the model used when none is configured.
func (g *GeminiProvider) DefaultModel() string {
	return geminiDefaultModel
}

// BuildURL constructs the generateContent endpoint for a model.
// A base URL that already names the method is used as-is.
func (g *GeminiProvider) BuildURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, ":generateContent") {
		return baseURL
	}
	if model == "" {
		model = geminiDefaultModel
	}
	return baseURL + "/models/" + model + ":generateContent"
}

// SetHeaders adds the API key header.
func (g *GeminiProvider) SetHeaders(req *http.Request, credential string) {
	if credential != "" {
		req.Header.Set("x-goog-api-key", credential)
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// geminiRequest is the generateContent request format.
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

// BuildRequestBody creates the generateContent request body.
func (g *GeminiProvider) BuildRequestBody(_ string, req llm.Request) ([]byte, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Generation.Temperature,
			TopK:            req.Generation.TopK,
			TopP:            req.Generation.TopP,
			MaxOutputTokens: req.Generation.MaxOutputTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	return json.Marshal(body)
}

// ParseResponse extracts the text of the first candidate.
// Multi-part candidates are concatenated in order.
func (g *GeminiProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("parse gemini response: invalid JSON")
	}

	parsed := gjson.ParseBytes(body)
	if msg := parsed.Get("error.message"); msg.Exists() {
		return nil, fmt.Errorf("gemini error: %s", msg.String())
	}

	parts := parsed.Get("candidates.0.content.parts.#.text")
	if !parts.Exists() || len(parts.Array()) == 0 {
		if reason := parsed.Get("promptFeedback.blockReason"); reason.Exists() {
			return nil, fmt.Errorf("gemini blocked prompt: %s", reason.String())
		}
		return nil, errors.New("no candidates in response")
	}

	var content strings.Builder
	for _, p := range parts.Array() {
		content.WriteString(p.String())
	}

	respModel := parsed.Get("modelVersion").String()
	if respModel == "" {
		respModel = model
	}

	return &llm.Response{
		Content: strings.TrimSpace(content.String()),
		Model:   respModel,
		Usage: llm.TokenUsage{
			PromptTokens:     int(parsed.Get("usageMetadata.promptTokenCount").Int()),
			CompletionTokens: int(parsed.Get("usageMetadata.candidatesTokenCount").Int()),
			TotalTokens:      int(parsed.Get("usageMetadata.totalTokenCount").Int()),
		},
		FinishReason: parsed.Get("candidates.0.finishReason").String(),
	}, nil
}

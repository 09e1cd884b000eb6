package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/c360studio/contentmesh/llm"
	"github.com/c360studio/contentmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProvider_Registered(t *testing.T) {
	p := llm.GetProvider("gemini")
	require.NotNil(t, p)
	assert.Equal(t, "gemini-2.0-flash", p.DefaultModel())
}

func TestGeminiProvider_BuildURL(t *testing.T) {
	p := &GeminiProvider{}

	tests := []struct {
		name    string
		baseURL string
		model   string
		want    string
	}{
		{
			name:  "empty uses default",
			model: "gemini-2.0-flash",
			want:  "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		},
		{
			name:    "custom base URL",
			baseURL: "http://localhost:8080/v1beta/",
			model:   "gemini-1.5-pro",
			want:    "http://localhost:8080/v1beta/models/gemini-1.5-pro:generateContent",
		},
		{
			name:    "full method URL kept",
			baseURL: "http://mock/v1beta/models/x:generateContent",
			model:   "gemini-2.0-flash",
			want:    "http://mock/v1beta/models/x:generateContent",
		},
		{
			name: "empty model uses default",
			want: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL, tt.model))
		})
	}
}

func TestGeminiProvider_SetHeaders(t *testing.T) {
	p := &GeminiProvider{}

	req, _ := http.NewRequest(http.MethodPost, "http://example.test", nil)
	p.SetHeaders(req, "AIza-test")
	assert.Equal(t, "AIza-test", req.Header.Get("x-goog-api-key"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestGeminiProvider_BuildRequestBody(t *testing.T) {
	p := &GeminiProvider{}

	temp := 0.7
	body, err := p.BuildRequestBody("gemini-2.0-flash", llm.Request{
		Prompt: "Write a blog post about edge computing",
		Generation: model.Generation{
			Temperature:     &temp,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1600,
		},
	})
	require.NoError(t, err)

	var decoded struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction *json.RawMessage `json:"systemInstruction"`
		GenerationConfig  map[string]any   `json:"generationConfig"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))

	require.Len(t, decoded.Contents, 1)
	assert.Equal(t, "Write a blog post about edge computing", decoded.Contents[0].Parts[0].Text)
	assert.Nil(t, decoded.SystemInstruction)
	assert.Equal(t, 0.7, decoded.GenerationConfig["temperature"])
	assert.Equal(t, 40.0, decoded.GenerationConfig["topK"])
	assert.Equal(t, 0.95, decoded.GenerationConfig["topP"])
	assert.Equal(t, 1600.0, decoded.GenerationConfig["maxOutputTokens"])
}

func TestGeminiProvider_BuildRequestBody_SystemInstruction(t *testing.T) {
	p := &GeminiProvider{}

	body, err := p.BuildRequestBody("gemini-2.0-flash", llm.Request{
		System: "Respond with JSON only.",
		Prompt: "parse this",
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"systemInstruction":{"parts":[{"text":"Respond with JSON only."}]}`)
	assert.NotContains(t, string(body), `"temperature"`)
}

func TestGeminiProvider_ParseResponse(t *testing.T) {
	p := &GeminiProvider{}

	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "<h1>Edge</h1>"}, {"text": "<p>Body</p>\n"}]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 30, "totalTokenCount": 42},
		"modelVersion": "gemini-2.0-flash-001"
	}`)

	resp, err := p.ParseResponse(body, "gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Edge</h1><p>Body</p>", resp.Content)
	assert.Equal(t, "gemini-2.0-flash-001", resp.Model)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 30, resp.Usage.CompletionTokens)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
}

func TestGeminiProvider_ParseResponse_Errors(t *testing.T) {
	p := &GeminiProvider{}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", `not json`, "invalid JSON"},
		{"no candidates", `{"candidates": []}`, "no candidates"},
		{"blocked prompt", `{"promptFeedback": {"blockReason": "SAFETY"}}`, "SAFETY"},
		{"error object", `{"error": {"code": 400, "message": "API key not valid"}}`, "API key not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseResponse([]byte(tt.body), "gemini-2.0-flash")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeminiProvider_ParseResponse_FallsBackToRequestedModel(t *testing.T) {
	p := &GeminiProvider{}

	resp, err := p.ParseResponse([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`), "gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", resp.Model)
}

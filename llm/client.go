// Package llm provides a provider-agnostic, single-attempt LLM client.
// Every failure is returned as a *Failure carrying a FailureReason so callers
// can decide how to recover; the client itself never retries.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/contentmesh/model"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// maxErrorBodyLen bounds the upstream body retained for diagnostics.
const maxErrorBodyLen = 200

// Client sends generation requests to one configured provider.
type Client struct {
	config     ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// Request defines a single generation request.
type Request struct {
	// System is an optional system instruction.
	System string

	// Prompt is the user prompt.
	Prompt string

	// Generation holds sampling parameters and the output token budget.
	Generation model.Generation
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the generation result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the content.
	Model string

	// Usage contains token consumption metrics when the provider reports them.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client for the given provider configuration.
func NewClient(cfg ProviderConfig, opts ...ClientOption) *Client {
	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.timeout(),
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Config returns the provider configuration.
func (c *Client) Config() ProviderConfig {
	return c.config
}

// Available reports whether the client can attempt a call at all.
func (c *Client) Available() bool {
	return c.config.HasCredential() && GetProvider(c.config.Provider) != nil
}

// Model returns the configured model or the provider default.
func (c *Client) Model() string {
	if c.config.Model != "" {
		return c.config.Model
	}
	if p := GetProvider(c.config.Provider); p != nil {
		return p.DefaultModel()
	}
	return ""
}

// Generate performs exactly one provider call.
//
// A missing credential fails immediately without network I/O. The call is
// detached from the caller's cancellation and bounded only by the configured
// timeout.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if !c.config.HasCredential() {
		return nil, NewFailure(ReasonMissingCredentials,
			fmt.Errorf("no credential configured for provider %q", c.config.Provider))
	}

	provider := GetProvider(c.config.Provider)
	if provider == nil {
		return nil, NewFailure(ReasonTransportError, fmt.Errorf("unknown provider: %s", c.config.Provider))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.timeout())
	defer cancel()

	return c.doRequest(ctx, provider, req)
}

// doRequest executes a single HTTP request to the provider.
func (c *Client) doRequest(ctx context.Context, provider Provider, req Request) (*Response, error) {
	modelName := c.Model()
	url := provider.BuildURL(c.config.Endpoint, modelName)

	body, err := provider.BuildRequestBody(modelName, req)
	if err != nil {
		return nil, NewFailure(ReasonTransportError, fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", provider.Name(),
		"model", modelName,
		"max_output_tokens", req.Generation.MaxOutputTokens)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFailure(ReasonTransportError, fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, c.config.Credential)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, modelName)
	if err != nil {
		return nil, NewFailure(ReasonMalformedUpstreamBody, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, NewFailure(ReasonMalformedUpstreamBody, errors.New("provider returned no text"))
	}
	if resp.Model == "" {
		resp.Model = modelName
	}
	return resp, nil
}

// classifyHTTPError keeps the status and a bounded body excerpt for diagnostics.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > maxErrorBodyLen {
		cut := maxErrorBodyLen
		for cut > 0 && !utf8.RuneStart(bodyStr[cut]) {
			cut--
		}
		bodyStr = bodyStr[:cut] + "..."
	}

	return &Failure{
		Reason:     ReasonBadUpstreamStatus,
		StatusCode: statusCode,
		Body:       bodyStr,
		err:        fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr),
	}
}

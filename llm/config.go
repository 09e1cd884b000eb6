package llm

import (
	"strings"
	"time"
)

// DefaultTimeout bounds the single outbound provider call.
const DefaultTimeout = 30 * time.Second

// ProviderConfig is injected once at process start.
type ProviderConfig struct {
	// Provider is the registered adapter name (gemini, openai, ollama, anthropic).
	Provider string

	// Endpoint is the base URL. Empty uses the adapter's default.
	Endpoint string

	// Model is the provider model identifier.
	Model string

	// Credential is the API key. Empty means the primary path is unavailable.
	Credential string

	// Timeout for the outbound call. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// HasCredential reports whether a non-blank credential is configured.
func (c ProviderConfig) HasCredential() bool {
	return strings.TrimSpace(c.Credential) != ""
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

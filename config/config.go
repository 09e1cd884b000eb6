// Package config provides configuration loading and management for contentmesh.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360studio/contentmesh/gateway"
	"github.com/c360studio/contentmesh/llm"
	_ "github.com/c360studio/contentmesh/llm/providers"
	"github.com/c360studio/contentmesh/model"
	"github.com/c360studio/contentmesh/task"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete contentmesh configuration
type Config struct {
	Service    ServiceConfig        `yaml:"service"`
	Server     ServerConfig         `yaml:"server"`
	Provider   ProviderConfig       `yaml:"provider"`
	Limits     LimitsConfig         `yaml:"limits"`
	Generation model.RegistryConfig `yaml:"generation,omitempty"`
	Metrics    MetricsConfig        `yaml:"metrics"`
	Events     EventsConfig         `yaml:"events"`
}

// ServiceConfig selects the deployment profile
type ServiceConfig struct {
	// Profile is one of mcp-manager, content-router, intent-parser
	Profile string `yaml:"profile" validate:"required"`
	// Version is reported by the informational endpoints
	Version string `yaml:"version"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// Host is the listen address (default: 0.0.0.0)
	Host string `yaml:"host" validate:"required"`
	// Port is the listen port. Zero uses the profile default.
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// ProviderConfig configures the primary generation provider
type ProviderConfig struct {
	// Name is the registered adapter (gemini, openai, ollama, anthropic)
	Name string `yaml:"name" validate:"required"`
	// Endpoint is the base URL. Empty uses the adapter default.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// Model is the provider model id. Empty uses the adapter default.
	Model string `yaml:"model"`
	// CredentialEnv names the environment variable holding the API key
	CredentialEnv string `yaml:"credential_env" validate:"required"`

	// credential is resolved from the environment by the loader and never
	// serialized.
	credential string
}

// LimitsConfig bounds request payloads
type LimitsConfig struct {
	// MaxWordCount is the largest accepted target size
	MaxWordCount int `yaml:"max_word_count" validate:"gte=1"`
}

// MetricsConfig configures the /metrics endpoint
type MetricsConfig struct {
	// Enabled serves GET /metrics (default: true)
	Enabled *bool `yaml:"enabled,omitempty"`
}

// MetricsEnabled reports whether /metrics is served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

// EventsConfig configures outcome publishing
type EventsConfig struct {
	// NATSURL is the NATS server URL (empty = publishing disabled unless embedded)
	NATSURL string `yaml:"nats_url" validate:"omitempty,url"`
	// Embedded starts an in-process NATS server when NATSURL is empty
	Embedded bool `yaml:"embedded"`
	// SubjectPrefix is prepended to <kind>.<status>
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Profile: gateway.ProfileMCPManager,
			Version: "1.0.0",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 0, // Profile default
		},
		Provider: ProviderConfig{
			Name:          "gemini",
			CredentialEnv: "GEMINI_API_KEY",
		},
		Limits: LimitsConfig{
			MaxWordCount: task.DefaultMaxTargetSize,
		},
		Events: EventsConfig{
			SubjectPrefix: "contentmesh.dispatch",
		},
	}
}

var validate = validator.New()

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := gateway.LookupProfile(c.Service.Profile); !ok {
		return fmt.Errorf("service.profile %q is not one of %v", c.Service.Profile, gateway.ProfileNames())
	}
	if llm.GetProvider(c.Provider.Name) == nil {
		return fmt.Errorf("provider.name %q is not registered (known: %v)", c.Provider.Name, llm.ListProviders())
	}
	for name, p := range c.Generation {
		if !task.ParseKind(name).IsValid() {
			return fmt.Errorf("generation.%s: unknown task kind", name)
		}
		if p == nil {
			continue
		}
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("generation.%s: %w", name, err)
		}
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}

// Profile returns the selected deployment profile.
func (c *Config) Profile() (*gateway.Profile, error) {
	p, ok := gateway.LookupProfile(c.Service.Profile)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", c.Service.Profile)
	}
	return p, nil
}

// ListenAddr returns host:port, using the profile default port when unset.
func (c *Config) ListenAddr() string {
	port := c.Server.Port
	if port == 0 {
		if p, ok := gateway.LookupProfile(c.Service.Profile); ok {
			port = p.DefaultPort
		}
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, port)
}

// EventsEnabled reports whether outcomes are published.
func (c *Config) EventsEnabled() bool {
	return c.Events.NATSURL != "" || c.Events.Embedded
}

// LLMConfig builds the provider configuration injected into the client.
// The outbound timeout is always llm.DefaultTimeout.
func (c *Config) LLMConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:   c.Provider.Name,
		Endpoint:   c.Provider.Endpoint,
		Model:      c.Provider.Model,
		Credential: c.Provider.credential,
		Timeout:    llm.DefaultTimeout,
	}
}

// SetCredential sets the resolved provider credential.
func (c *Config) SetCredential(credential string) {
	c.Provider.credential = credential
}

// Registry builds the generation registry with config overrides applied.
func (c *Config) Registry() (*model.Registry, error) {
	r := model.NewDefaultRegistry()
	if err := r.MergeFromConfig(c.Generation); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Service
	if other.Service.Profile != "" {
		c.Service.Profile = other.Service.Profile
	}
	if other.Service.Version != "" {
		c.Service.Version = other.Service.Version
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}

	// Provider
	if other.Provider.Name != "" {
		c.Provider.Name = other.Provider.Name
	}
	if other.Provider.Endpoint != "" {
		c.Provider.Endpoint = other.Provider.Endpoint
	}
	if other.Provider.Model != "" {
		c.Provider.Model = other.Provider.Model
	}
	if other.Provider.CredentialEnv != "" {
		c.Provider.CredentialEnv = other.Provider.CredentialEnv
	}

	// Limits
	if other.Limits.MaxWordCount != 0 {
		c.Limits.MaxWordCount = other.Limits.MaxWordCount
	}

	// Generation overrides merge per field
	for name, p := range other.Generation {
		if c.Generation == nil {
			c.Generation = make(model.RegistryConfig)
		}
		c.Generation[name] = c.Generation[name].Merge(p)
	}

	// Metrics
	if other.Metrics.Enabled != nil {
		enabled := *other.Metrics.Enabled
		c.Metrics.Enabled = &enabled
	}

	// Events
	if other.Events.NATSURL != "" {
		c.Events.NATSURL = other.Events.NATSURL
		c.Events.Embedded = false
	} else if other.Events.Embedded {
		c.Events.Embedded = true
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}
}

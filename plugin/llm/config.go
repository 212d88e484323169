package llm

import (
	"github.com/fankam/depanneo/internal/profile"
)

// Config selects and configures the backends assembled at startup.
type Config struct {
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// NewConfigFromProfile creates backend config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			APIKey:  p.LLMOpenAIAPIKey,
			BaseURL: p.LLMOpenAIBaseURL,
			Model:   p.LLMOpenAIModel,
		},
		Anthropic: AnthropicConfig{
			APIKey: p.LLMAnthropicAPIKey,
			Model:  p.LLMAnthropicModel,
		},
	}
}

// Backends assembles the configured backends in fallback order: primary
// first. A backend without an API key is skipped.
func (c *Config) Backends() []Backend {
	backends := []Backend{}
	if c.OpenAI.APIKey != "" {
		backends = append(backends, NewOpenAIBackend(c.OpenAI))
	}
	if c.Anthropic.APIKey != "" {
		backends = append(backends, NewAnthropicBackend(c.Anthropic))
	}
	return backends
}

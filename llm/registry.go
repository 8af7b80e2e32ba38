package llm

import (
	"fmt"
	"sort"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// ClientKey uniquely identifies an LLM client configuration.
type ClientKey struct {
	Provider     string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For Anthropic and OpenAI
	Organization string // For OpenAI
}

// ProviderConfig holds the credentials and endpoints of every provider.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OllamaHost       string
	OllamaEnabled    bool
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIOrg        string
}

// ProviderRegistry answers which providers can be used and how to reach them.
// It is built once at startup and never mutated, so it is safe for concurrent reads.
type ProviderRegistry struct {
	config ProviderConfig
}

// NewProviderRegistry creates a new ProviderRegistry from the given config.
func NewProviderRegistry(providerConfig ProviderConfig) *ProviderRegistry {
	return &ProviderRegistry{config: providerConfig}
}

// IsProviderConfigured checks if a provider has the required configuration (API keys, hosts, etc.).
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	switch provider {
	case ProviderAnthropic:
		return r.config.AnthropicAPIKey != ""
	case ProviderOllama:
		// Ollama doesn't require API key, only an explicit opt-in
		return r.config.OllamaEnabled
	case ProviderOpenAI:
		return r.config.OpenAIAPIKey != ""
	default:
		return false
	}
}

// ConfiguredProviders returns the sorted list of configured providers.
func (r *ProviderRegistry) ConfiguredProviders() []string {
	var providers []string
	for _, p := range []string{ProviderAnthropic, ProviderOllama, ProviderOpenAI} {
		if r.IsProviderConfigured(p) {
			providers = append(providers, p)
		}
	}
	sort.Strings(providers)
	return providers
}

// ResolveClientKey resolves provider-specific configuration and returns a ClientKey.
func (r *ProviderRegistry) ResolveClientKey(provider string) (*ClientKey, error) {
	key := &ClientKey{Provider: provider}

	switch provider {
	case ProviderAnthropic:
		if r.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = r.config.AnthropicAPIKey
		key.BaseURL = r.config.AnthropicBaseURL

	case ProviderOllama:
		if !r.config.OllamaEnabled {
			return nil, fmt.Errorf("ollama provider not enabled")
		}
		host := r.config.OllamaHost
		if host == "" {
			host = "http://localhost:11434" // Default
		}
		key.Host = host

	case ProviderOpenAI:
		if r.config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.APIKey = r.config.OpenAIAPIKey
		key.BaseURL = r.config.OpenAIBaseURL
		key.Organization = r.config.OpenAIOrg

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

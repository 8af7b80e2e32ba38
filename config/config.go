package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/aschepis/backscratcher/slots/model"
	"github.com/aschepis/backscratcher/slots/resilient"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey      string `yaml:"api_key,omitempty"`      // Anthropic API key
	BaseURL     string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	MaxAttempts int    `yaml:"max_attempts,omitempty"` // Attempts per endpoint, including the first
}

// OpenAIConfig represents configuration for OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// OllamaConfig represents configuration for Ollama LLM provider.
type OllamaConfig struct {
	Host    string `yaml:"host,omitempty"`    // Ollama host (default: "http://localhost:11434")
	Enabled bool   `yaml:"enabled,omitempty"` // Ollama has no credentials, so it is opt-in
}

// RetryConfig holds the backoff shape shared by every slot.
type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
}

// FallbackConfig holds the message keywords that send a transient failure to the fallback model.
type FallbackConfig struct {
	Keywords []string `yaml:"keywords,omitempty"`
}

// SlotConfig names the models behind a slot. An empty Fallback means the slot never falls back.
type SlotConfig struct {
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback,omitempty"`
}

// ModelConfig adds a model to the catalog, e.g. a local Ollama model.
type ModelConfig struct {
	Name             string  `yaml:"name"`
	Provider         string  `yaml:"provider"`
	KnowledgeCutoff  string  `yaml:"knowledge_cutoff,omitempty"` // YYYY-MM-DD
	InputPerMillion  float64 `yaml:"input_per_million,omitempty"`
	OutputPerMillion float64 `yaml:"output_per_million,omitempty"`
}

// Config is the complete slots configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`

	Retry    RetryConfig    `yaml:"retry,omitempty"`
	Fallback FallbackConfig `yaml:"fallback,omitempty"`

	// A slot defined in the config file replaces the default slot of the same name.
	Slots  map[string]SlotConfig `yaml:"slots,omitempty"`
	Models []ModelConfig         `yaml:"models,omitempty"`
}

// Default slot names.
const (
	SlotOpus   = "opus"
	SlotSonnet = "sonnet"
	SlotHaiku  = "haiku"
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxAttempts: resilient.DefaultMaxAttempts,
		},
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		Retry: RetryConfig{
			InitialDelay: resilient.DefaultInitialDelay,
			MaxDelay:     resilient.DefaultMaxDelay,
			Multiplier:   resilient.DefaultMultiplier,
		},
		Fallback: FallbackConfig{
			Keywords: resilient.DefaultFallbackKeywords(),
		},
		Slots: map[string]SlotConfig{
			SlotOpus:   {Primary: model.Claude40Opus, Fallback: model.GPT41},
			SlotSonnet: {Primary: model.Claude37Sonnet, Fallback: model.GPT41},
			SlotHaiku:  {Primary: model.Claude35Haiku, Fallback: model.GPT41Mini},
		},
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via SLOTS_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("SLOTS_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.slots/config.yaml"
	}
	return filepath.Join(homeDir, ".slots", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// LoadConfig loads configuration from path, merged over the defaults, then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		expandedPath := expandPath(path)
		if _, err := os.Stat(expandedPath); err == nil {
			configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
			}

			var fileConfig Config
			if err := yaml.Unmarshal(configYAML, &fileConfig); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}

			if err := mergo.Merge(cfg, fileConfig, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge config: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := applyAnthropicEnv(&cfg.Anthropic); err != nil {
		return err
	}
	applyOpenAIEnv(&cfg.OpenAI)
	applyOllamaEnv(&cfg.Ollama)
	return nil
}

// Validate checks the retry settings and slot definitions.
func (c *Config) Validate() error {
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, slot := range c.Slots {
		if slot.Primary == "" {
			return fmt.Errorf("invalid config: slot %q has no primary model", name)
		}
		if slot.Fallback == slot.Primary {
			return fmt.Errorf("invalid config: slot %q falls back to its own primary model %q", name, slot.Primary)
		}
	}
	for _, m := range c.Models {
		if m.Name == "" || m.Provider == "" {
			return fmt.Errorf("invalid config: models entries need a name and a provider")
		}
		if m.KnowledgeCutoff != "" {
			if _, err := time.Parse(time.DateOnly, m.KnowledgeCutoff); err != nil {
				return fmt.Errorf("invalid config: model %q knowledge cutoff: %w", m.Name, err)
			}
		}
	}
	return nil
}

// RetryPolicy builds the retry policy shared by every slot.
func (c *Config) RetryPolicy() resilient.RetryPolicy {
	policy := resilient.DefaultRetryPolicy()
	policy.MaxAttempts = c.Anthropic.MaxAttempts
	policy.InitialDelay = c.Retry.InitialDelay
	policy.MaxDelay = c.Retry.MaxDelay
	policy.Multiplier = c.Retry.Multiplier
	return policy
}

// FallbackKeywords returns the configured fallback keywords.
func (c *Config) FallbackKeywords() []string {
	return append([]string(nil), c.Fallback.Keywords...)
}

// ProviderConfig extracts provider credentials for an llm.ProviderRegistry.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		AnthropicAPIKey:  c.Anthropic.APIKey,
		AnthropicBaseURL: c.Anthropic.BaseURL,
		OllamaHost:       c.Ollama.Host,
		OllamaEnabled:    c.Ollama.Enabled,
		OpenAIAPIKey:     c.OpenAI.APIKey,
		OpenAIBaseURL:    c.OpenAI.BaseURL,
		OpenAIOrg:        c.OpenAI.Organization,
	}
}

// ModelSpecs converts the extra models into catalog specs.
func (c *Config) ModelSpecs() []model.Spec {
	specs := make([]model.Spec, 0, len(c.Models))
	for _, m := range c.Models {
		spec := model.Spec{
			Name:     m.Name,
			Provider: m.Provider,
			Pricing: model.Pricing{
				InputPerMillion:  m.InputPerMillion,
				OutputPerMillion: m.OutputPerMillion,
			},
		}
		if cutoff, err := time.Parse(time.DateOnly, m.KnowledgeCutoff); err == nil {
			spec.KnowledgeCutoff = &cutoff
		}
		specs = append(specs, spec)
	}
	return specs
}

// SaveConfig saves the configuration to the specified path.
func SaveConfig(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Holds API keys
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

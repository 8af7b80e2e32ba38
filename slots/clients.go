package slots

import (
	"fmt"
	"sync"

	"github.com/aschepis/backscratcher/slots/llm"
	llmanthropic "github.com/aschepis/backscratcher/slots/llm/anthropic"
	llmollama "github.com/aschepis/backscratcher/slots/llm/ollama"
	llmopenai "github.com/aschepis/backscratcher/slots/llm/openai"
	"github.com/rs/zerolog"
)

// ClientFactory creates the provider client for a resolved ClientKey.
type ClientFactory func(key *llm.ClientKey) (llm.Client, error)

// NewProviderClient is the default ClientFactory.
func NewProviderClient(logger zerolog.Logger) ClientFactory {
	return func(key *llm.ClientKey) (llm.Client, error) {
		switch key.Provider {
		case llm.ProviderAnthropic:
			client, err := llmanthropic.NewAnthropicClient(key.APIKey, key.BaseURL, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create anthropic client: %w", err)
			}
			return client, nil

		case llm.ProviderOllama:
			client, err := llmollama.NewOllamaClient(key.Host)
			if err != nil {
				return nil, fmt.Errorf("failed to create ollama client: %w", err)
			}
			return client, nil

		case llm.ProviderOpenAI:
			client, err := llmopenai.NewOpenAIClient(key.APIKey, key.BaseURL, key.Organization)
			if err != nil {
				return nil, fmt.Errorf("failed to create openai client: %w", err)
			}
			return client, nil

		default:
			return nil, fmt.Errorf("unknown provider: %s", key.Provider)
		}
	}
}

// clientCache shares one provider client between every endpoint with the same ClientKey.
type clientCache struct {
	mu      sync.Mutex
	factory ClientFactory
	clients map[llm.ClientKey]llm.Client
}

func newClientCache(factory ClientFactory) *clientCache {
	return &clientCache{
		factory: factory,
		clients: make(map[llm.ClientKey]llm.Client),
	}
}

func (c *clientCache) get(key *llm.ClientKey) (llm.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[*key]; ok {
		return client, nil
	}
	client, err := c.factory(key)
	if err != nil {
		return nil, err
	}
	c.clients[*key] = client
	return client, nil
}

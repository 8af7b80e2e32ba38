package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/samber/lo"
)

const (
	Claude40Opus   = "claude-opus-4-20250514"
	Claude37Sonnet = "claude-3-7-sonnet-latest"
	Claude35Haiku  = "claude-3-5-haiku-latest"

	GPT41     = "gpt-4.1"
	GPT41Mini = "gpt-4.1-mini"
)

// Spec is the static description of a model, before it is bound to a client.
type Spec struct {
	Name            string
	Provider        string
	KnowledgeCutoff *time.Time
	Pricing         Pricing
}

// Catalog is an immutable table of model specs, built once at startup and passed
// explicitly to whatever needs to bind endpoints.
type Catalog struct {
	specs map[string]Spec
}

// NewCatalog builds a catalog. Duplicate or unnamed specs are rejected.
func NewCatalog(specs ...Spec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("catalog: model name is required")
		}
		if _, exists := c.specs[s.Name]; exists {
			return nil, fmt.Errorf("catalog: duplicate model %s", s.Name)
		}
		c.specs[s.Name] = s
	}
	return c, nil
}

// Lookup returns the spec for a model name.
func (c *Catalog) Lookup(name string) (Spec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Names returns the sorted list of model names.
func (c *Catalog) Names() []string {
	names := lo.Keys(c.specs)
	sort.Strings(names)
	return names
}

// ByProvider returns the sorted names of the models owned by provider.
func (c *Catalog) ByProvider(provider string) []string {
	names := lo.Filter(c.Names(), func(name string, _ int) bool {
		return c.specs[name].Provider == provider
	})
	return names
}

// Bind turns the named spec into an Endpoint that calls client.
func (c *Catalog) Bind(name string, client llm.Client) (*Endpoint, error) {
	s, ok := c.specs[name]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown model %s", name)
	}
	opts := []EndpointOption{WithPricing(s.Pricing)}
	if s.KnowledgeCutoff != nil {
		opts = append(opts, WithKnowledgeCutoff(*s.KnowledgeCutoff))
	}
	return NewEndpoint(s.Name, s.Provider, client, opts...)
}

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// DefaultSpecs returns the built-in Anthropic models and their OpenAI fallbacks.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Name:            Claude40Opus,
			Provider:        llm.ProviderAnthropic,
			KnowledgeCutoff: date(2025, time.March, 31),
			Pricing:         Pricing{InputPerMillion: 15.0, OutputPerMillion: 75.0},
		},
		{
			Name:            Claude37Sonnet,
			Provider:        llm.ProviderAnthropic,
			KnowledgeCutoff: date(2024, time.October, 31),
			Pricing:         Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0},
		},
		{
			Name:            Claude35Haiku,
			Provider:        llm.ProviderAnthropic,
			KnowledgeCutoff: date(2024, time.October, 22),
			Pricing:         Pricing{InputPerMillion: 0.80, OutputPerMillion: 4.0},
		},
		{
			Name:            GPT41,
			Provider:        llm.ProviderOpenAI,
			KnowledgeCutoff: date(2024, time.June, 1),
			Pricing:         Pricing{InputPerMillion: 2.0, OutputPerMillion: 8.0},
		},
		{
			Name:            GPT41Mini,
			Provider:        llm.ProviderOpenAI,
			KnowledgeCutoff: date(2024, time.June, 1),
			Pricing:         Pricing{InputPerMillion: 0.40, OutputPerMillion: 1.60},
		},
	}
}

// DefaultCatalog returns a catalog of DefaultSpecs plus any extra specs.
func DefaultCatalog(extra ...Spec) (*Catalog, error) {
	return NewCatalog(append(DefaultSpecs(), extra...)...)
}

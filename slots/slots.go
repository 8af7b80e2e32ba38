// Package slots binds the configured model slots to resilient invokers.
//
// A slot is a name ("opus", "sonnet", "haiku", ...) behind which sits a primary
// model and an optional fallback model. Build resolves every slot once at
// startup against the model catalog and the configured providers; slots whose
// primary provider has no credentials are skipped, and fallbacks whose provider
// has no credentials are left unbound.
package slots

import (
	"fmt"
	"sort"

	"github.com/aschepis/backscratcher/slots/config"
	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/aschepis/backscratcher/slots/model"
	"github.com/aschepis/backscratcher/slots/resilient"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Set holds the invokers of every usable slot. It is immutable after Build.
type Set struct {
	invokers map[string]*resilient.Invoker
	costs    *model.CostTracker
}

type buildOptions struct {
	factory ClientFactory
	metrics *resilient.Metrics
	costs   *model.CostTracker
}

// Option configures Build.
type Option func(*buildOptions)

// WithClientFactory replaces the provider client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(o *buildOptions) {
		o.factory = f
	}
}

// WithMetrics attaches Prometheus metrics to every invoker.
func WithMetrics(m *resilient.Metrics) Option {
	return func(o *buildOptions) {
		o.metrics = m
	}
}

// WithCostTracker shares a cost tracker between every invoker.
func WithCostTracker(t *model.CostTracker) Option {
	return func(o *buildOptions) {
		o.costs = t
	}
}

// Build creates an invoker for every configured slot whose primary provider is available.
func Build(cfg *config.Config, catalog *model.Catalog, logger zerolog.Logger, opts ...Option) (*Set, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	o := buildOptions{
		factory: NewProviderClient(logger),
		costs:   model.NewCostTracker(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With().Str("component", "slots").Logger()
	registry := llm.NewProviderRegistry(cfg.ProviderConfig())
	clients := newClientCache(o.factory)
	policy := cfg.RetryPolicy()
	keywords := cfg.FallbackKeywords()

	b := &binder{
		catalog:  catalog,
		registry: registry,
		clients:  clients,
		logger:   logger,
	}

	set := &Set{
		invokers: make(map[string]*resilient.Invoker, len(cfg.Slots)),
		costs:    o.costs,
	}

	names := lo.Keys(cfg.Slots)
	sort.Strings(names)
	for _, name := range names {
		slot := cfg.Slots[name]

		primary, err := b.bind(slot.Primary)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", name, err)
		}
		if primary == nil {
			logger.Info().Str("slot", name).Str("model", slot.Primary).Msg("Skipping slot, primary provider not configured")
			continue
		}

		var fallback *model.Endpoint
		if slot.Fallback != "" {
			fallback, err = b.bind(slot.Fallback)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", name, err)
			}
			if fallback == nil {
				logger.Info().Str("slot", name).Str("model", slot.Fallback).Msg("Fallback provider not configured, slot has no fallback")
			}
		}

		invoker, err := resilient.New(primary, policy, resilient.NewFallbackRule(fallback, keywords...),
			resilient.WithName(name),
			resilient.WithLogger(logger),
			resilient.WithMetrics(o.metrics),
			resilient.WithCostTracker(o.costs),
		)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", name, err)
		}
		set.invokers[name] = invoker

		event := logger.Info().Str("slot", name).Str("primary", primary.String())
		if fallback != nil {
			event = event.Str("fallback", fallback.String())
		}
		event.Msg("Slot ready")
	}

	return set, nil
}

type binder struct {
	catalog  *model.Catalog
	registry *llm.ProviderRegistry
	clients  *clientCache
	logger   zerolog.Logger
}

// bind returns nil without error when the model's provider is not configured.
func (b *binder) bind(name string) (*model.Endpoint, error) {
	spec, ok := b.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	if !b.registry.IsProviderConfigured(spec.Provider) {
		return nil, nil
	}

	key, err := b.registry.ResolveClientKey(spec.Provider)
	if err != nil {
		return nil, err
	}
	client, err := b.clients.get(key)
	if err != nil {
		return nil, err
	}

	mw := newLoggingMiddleware(b.logger.With().Str("provider", spec.Provider).Logger())
	return b.catalog.Bind(name, llm.WrapWithMiddleware(client, mw))
}

// Get returns the invoker for a slot.
func (s *Set) Get(name string) (*resilient.Invoker, error) {
	invoker, ok := s.invokers[name]
	if !ok {
		return nil, fmt.Errorf("slot %q is not available (available: %v)", name, s.Names())
	}
	return invoker, nil
}

// Names returns the available slot names, sorted.
func (s *Set) Names() []string {
	names := lo.Keys(s.invokers)
	sort.Strings(names)
	return names
}

// Costs returns the tracker recording usage for every slot.
func (s *Set) Costs() *model.CostTracker {
	return s.costs
}

package model

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/slots/llm"
)

// Endpoint is a single invocable remote model.
type Endpoint struct {
	name            string
	provider        string
	knowledgeCutoff *time.Time
	pricing         Pricing
	client          llm.Client
}

// EndpointOption configures optional Endpoint metadata.
type EndpointOption func(*Endpoint)

// WithKnowledgeCutoff records the model's training cutoff date.
func WithKnowledgeCutoff(cutoff time.Time) EndpointOption {
	return func(e *Endpoint) {
		c := cutoff
		e.knowledgeCutoff = &c
	}
}

// WithPricing records the model's per-token pricing.
func WithPricing(p Pricing) EndpointOption {
	return func(e *Endpoint) {
		e.pricing = p
	}
}

// NewEndpoint creates an Endpoint that calls client for the model name.
func NewEndpoint(name, provider string, client llm.Client, opts ...EndpointOption) (*Endpoint, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if client == nil {
		return nil, fmt.Errorf("model %s: client is required", name)
	}
	e := &Endpoint{
		name:     name,
		provider: provider,
		client:   client,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name returns the provider-qualified model id.
func (e *Endpoint) Name() string { return e.name }

// Provider returns the label of the owning provider.
func (e *Endpoint) Provider() string { return e.provider }

// Pricing returns the model's per-token pricing.
func (e *Endpoint) Pricing() Pricing { return e.pricing }

// KnowledgeCutoff returns the training cutoff date, if known.
func (e *Endpoint) KnowledgeCutoff() (time.Time, bool) {
	if e.knowledgeCutoff == nil {
		return time.Time{}, false
	}
	return *e.knowledgeCutoff, true
}

// Invoke sends req to this model. The caller's request is not modified:
// a shallow copy is stamped with this endpoint's model name.
func (e *Endpoint) Invoke(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	stamped := *req
	stamped.Model = e.name
	return e.client.Synchronous(ctx, &stamped)
}

// Synchronous implements llm.Client.
func (e *Endpoint) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return e.Invoke(ctx, req)
}

// String returns provider/name.
func (e *Endpoint) String() string {
	if e.provider == "" {
		return e.name
	}
	return e.provider + "/" + e.name
}

// Ensure Endpoint implements llm.Client
var _ llm.Client = (*Endpoint)(nil)

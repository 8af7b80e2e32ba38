package model

import (
	"sort"
	"sync"

	"github.com/aschepis/backscratcher/slots/llm"
)

// Pricing holds per-million-token pricing for a model in USD.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million" json:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million" json:"output_per_million"`
}

// Cost returns the USD cost of the given usage.
func (p Pricing) Cost(usage *llm.Usage) float64 {
	if usage == nil {
		return 0
	}
	return float64(usage.InputTokens)*p.InputPerMillion/1_000_000 +
		float64(usage.OutputTokens)*p.OutputPerMillion/1_000_000
}

// Usage tracks token usage and cost for a model.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Requests     int
	CostUSD      float64
}

// CostTracker tracks token usage and estimated costs across models.
type CostTracker struct {
	mu     sync.RWMutex
	totals map[string]Usage
}

// NewCostTracker creates a new cost tracker.
func NewCostTracker() *CostTracker {
	return &CostTracker{
		totals: make(map[string]Usage),
	}
}

// Record adds a response's usage, priced with the endpoint that produced it.
func (t *CostTracker) Record(e *Endpoint, usage *llm.Usage) {
	if usage == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.totals[e.Name()]
	u.InputTokens += usage.InputTokens
	u.OutputTokens += usage.OutputTokens
	u.Requests++
	u.CostUSD += e.Pricing().Cost(usage)
	t.totals[e.Name()] = u
}

// Usage returns the accumulated usage for a model.
func (t *CostTracker) Usage(model string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totals[model]
}

// Models returns the sorted names of all models with recorded usage.
func (t *CostTracker) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.totals))
	for name := range t.totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalCost returns the total USD cost across all models.
func (t *CostTracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, u := range t.totals {
		total += u.CostUSD
	}
	return total
}

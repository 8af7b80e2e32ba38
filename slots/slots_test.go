package slots

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/slots/config"
	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/aschepis/backscratcher/slots/model"
	"github.com/rs/zerolog"
)

// fakeFactory hands out one scripted client per provider and counts constructions.
type fakeFactory struct {
	mu      sync.Mutex
	created map[string]int
	errs    map[string]error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		created: make(map[string]int),
		errs:    make(map[string]error),
	}
}

func (f *fakeFactory) factory(key *llm.ClientKey) (llm.Client, error) {
	f.mu.Lock()
	f.created[key.Provider]++
	f.mu.Unlock()

	provider := key.Provider
	return llm.ClientFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		f.mu.Lock()
		err := f.errs[provider]
		f.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &llm.Response{
			Content: []llm.ContentBlock{{Type: llm.ContentBlockTypeText, Text: req.Model}},
			Usage:   &llm.Usage{InputTokens: 100, OutputTokens: 10},
		}, nil
	}), nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Anthropic.APIKey = "sk-ant"
	cfg.OpenAI.APIKey = "sk-openai"
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Retry.Multiplier = 2
	return cfg
}

func buildSet(t *testing.T, cfg *config.Config, f *fakeFactory) *Set {
	t.Helper()
	catalog, err := model.DefaultCatalog(cfg.ModelSpecs()...)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	set, err := Build(cfg, catalog, zerolog.Nop(), WithClientFactory(f.factory))
	if err != nil {
		t.Fatalf("Failed to build slots: %v", err)
	}
	return set
}

func TestBuild_AllProviders(t *testing.T) {
	f := newFakeFactory()
	set := buildSet(t, testConfig(), f)

	names := set.Names()
	if len(names) != 3 || names[0] != config.SlotHaiku || names[1] != config.SlotOpus || names[2] != config.SlotSonnet {
		t.Fatalf("Unexpected slots %v", names)
	}

	tests := []struct {
		slot     string
		primary  string
		fallback string
	}{
		{config.SlotOpus, model.Claude40Opus, model.GPT41},
		{config.SlotSonnet, model.Claude37Sonnet, model.GPT41},
		{config.SlotHaiku, model.Claude35Haiku, model.GPT41Mini},
	}
	for _, tt := range tests {
		inv, err := set.Get(tt.slot)
		if err != nil {
			t.Fatalf("Get(%s): %v", tt.slot, err)
		}
		if inv.Name() != tt.slot || inv.Primary().Name() != tt.primary {
			t.Errorf("Slot %s: unexpected primary %s", tt.slot, inv.Primary())
		}
		if inv.Fallback() == nil || inv.Fallback().Name() != tt.fallback {
			t.Errorf("Slot %s: expected fallback %s, got %v", tt.slot, tt.fallback, inv.Fallback())
		}
	}

	if f.created[llm.ProviderAnthropic] != 1 || f.created[llm.ProviderOpenAI] != 1 {
		t.Errorf("Expected one client per provider, got %v", f.created)
	}
}

func TestBuild_WithoutOpenAIHasNoFallbacks(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAI.APIKey = ""
	set := buildSet(t, cfg, newFakeFactory())

	for _, name := range set.Names() {
		inv, _ := set.Get(name)
		if inv.Fallback() != nil {
			t.Errorf("Slot %s: expected no fallback, got %s", name, inv.Fallback())
		}
	}
	if len(set.Names()) != 3 {
		t.Errorf("Expected all anthropic slots, got %v", set.Names())
	}
}

func TestBuild_WithoutAnthropicSkipsSlots(t *testing.T) {
	cfg := testConfig()
	cfg.Anthropic.APIKey = ""
	set := buildSet(t, cfg, newFakeFactory())

	if len(set.Names()) != 0 {
		t.Errorf("Expected no slots, got %v", set.Names())
	}
	if _, err := set.Get(config.SlotOpus); err == nil {
		t.Error("Expected error for unavailable slot")
	}
}

func TestBuild_UnknownModel(t *testing.T) {
	cfg := testConfig()
	cfg.Slots["broken"] = config.SlotConfig{Primary: "no-such-model"}

	catalog, _ := model.DefaultCatalog()
	if _, err := Build(cfg, catalog, zerolog.Nop(), WithClientFactory(newFakeFactory().factory)); err == nil {
		t.Error("Expected error for unknown model")
	}
}

func TestBuild_FactoryError(t *testing.T) {
	catalog, _ := model.DefaultCatalog()
	failing := func(key *llm.ClientKey) (llm.Client, error) {
		return nil, errors.New("no client")
	}
	if _, err := Build(testConfig(), catalog, zerolog.Nop(), WithClientFactory(failing)); err == nil {
		t.Error("Expected factory error to surface")
	}
}

func TestBuild_OllamaSlot(t *testing.T) {
	cfg := testConfig()
	cfg.Ollama.Enabled = true
	cfg.Models = append(cfg.Models, config.ModelConfig{Name: "llama3.2", Provider: llm.ProviderOllama})
	cfg.Slots["local"] = config.SlotConfig{Primary: "llama3.2", Fallback: model.GPT41Mini}

	f := newFakeFactory()
	set := buildSet(t, cfg, f)

	inv, err := set.Get("local")
	if err != nil {
		t.Fatalf("Expected local slot: %v", err)
	}
	resp, err := inv.Invoke(context.Background(), &llm.Request{Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "llama3.2" {
		t.Errorf("Expected local model to answer, got %q", resp.Text())
	}
	if f.created[llm.ProviderOllama] != 1 {
		t.Errorf("Expected one ollama client, got %v", f.created)
	}
}

func TestSet_FallbackAndCosts(t *testing.T) {
	f := newFakeFactory()
	f.errs[llm.ProviderAnthropic] = llm.NewTransientError(llm.ErrorTypeOverloaded, "Anthropic overloaded_error: Overloaded", nil)
	set := buildSet(t, testConfig(), f)

	inv, err := set.Get(config.SlotOpus)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp, err := inv.Invoke(context.Background(), &llm.Request{Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != model.GPT41 {
		t.Errorf("Expected fallback model to answer, got %q", resp.Text())
	}

	usage := set.Costs().Usage(model.GPT41)
	if usage.Requests != 1 || usage.CostUSD <= 0 {
		t.Errorf("Expected cost on the fallback model, got %+v", usage)
	}
	if set.Costs().Usage(model.Claude40Opus).Requests != 0 {
		t.Error("Expected no cost on the failed primary")
	}
}

func TestBuild_RequiresInputs(t *testing.T) {
	catalog, _ := model.DefaultCatalog()
	if _, err := Build(nil, catalog, zerolog.Nop()); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := Build(testConfig(), nil, zerolog.Nop()); err == nil {
		t.Error("Expected error for nil catalog")
	}
}

func TestNewProviderClient(t *testing.T) {
	factory := NewProviderClient(zerolog.Nop())
	if _, err := factory(&llm.ClientKey{Provider: "mystery"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
	if _, err := factory(&llm.ClientKey{Provider: llm.ProviderAnthropic}); err == nil {
		t.Error("Expected error for missing anthropic key")
	}
	if _, err := factory(&llm.ClientKey{Provider: llm.ProviderOpenAI, APIKey: "sk"}); err != nil {
		t.Errorf("Unexpected openai error: %v", err)
	}
	if _, err := factory(&llm.ClientKey{Provider: llm.ProviderOllama, Host: "http://localhost:11434"}); err != nil {
		t.Errorf("Unexpected ollama error: %v", err)
	}
}

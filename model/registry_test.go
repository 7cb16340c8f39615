package model

import (
	"encoding/json"
	"testing"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	for _, c := range Capabilities() {
		if r.GetCapability(c) == nil {
			t.Errorf("expected capability %s to be configured", c)
		}
		for _, name := range r.GetFallbackChain(c) {
			if r.GetEndpoint(name) == nil {
				t.Errorf("capability %s references undefined endpoint %s", c, name)
			}
		}
	}

	if err := r.ToConfig().Validate(); err != nil {
		t.Errorf("default registry should validate: %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		cap      Capability
		expected string
	}{
		{CapabilityIntent, "gpt-4.1-mini"},
		{CapabilityItinerary, "gpt-4o-mini"},
		{CapabilityChat, "gpt-4o-mini"},
		{Capability("unknown"), "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			if got := r.Resolve(tt.cap); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.cap, got, tt.expected)
			}
		})
	}
}

func TestRegistryGetFallbackChain(t *testing.T) {
	r := NewRegistry(map[Capability]*CapabilityConfig{
		CapabilityChat: {
			Preferred: []string{"a", "b"},
			Fallback:  []string{"b", "c"},
		},
	}, nil)

	chain := r.GetFallbackChain(CapabilityChat)
	want := []string{"a", "b", "c"}
	if len(chain) != len(want) {
		t.Fatalf("GetFallbackChain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}

	unknown := r.GetFallbackChain(CapabilityIntent)
	if len(unknown) != 1 || unknown[0] != "default" {
		t.Errorf("expected default chain for unconfigured capability, got %v", unknown)
	}
}

func TestRegistryCapabilitySettings(t *testing.T) {
	r := NewDefaultRegistry()

	itin := r.GetCapability(CapabilityItinerary)
	if itin == nil {
		t.Fatal("expected itinerary capability")
	}
	if !itin.JSONMode {
		t.Error("expected itinerary capability to request JSON mode")
	}
	if itin.Temperature == nil || *itin.Temperature != 0.4 {
		t.Errorf("expected itinerary temperature 0.4, got %v", itin.Temperature)
	}

	intentCfg := r.GetCapability(CapabilityIntent)
	if intentCfg.Temperature == nil || *intentCfg.Temperature != 0.2 {
		t.Errorf("expected intent temperature 0.2, got %v", intentCfg.Temperature)
	}

	// Returned config is a copy.
	itin.Preferred[0] = "changed"
	if r.Resolve(CapabilityItinerary) == "changed" {
		t.Error("GetCapability should return a copy")
	}
}

func TestRegistryGetEndpoint(t *testing.T) {
	r := NewDefaultRegistry()

	ep := r.GetEndpoint("claude-haiku")
	if ep == nil {
		t.Fatal("expected claude-haiku endpoint")
	}
	if ep.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", ep.Provider)
	}

	if r.GetEndpoint("nonexistent") != nil {
		t.Error("expected nil for unknown endpoint")
	}
}

func TestRegistrySetters(t *testing.T) {
	r := NewRegistry(nil, nil)

	r.SetEndpoint("local", &EndpointConfig{Provider: "ollama", Model: "mistral"})
	r.SetCapability(CapabilityIntent, &CapabilityConfig{Preferred: []string{"local"}})
	r.SetDefault("local")

	if got := r.Resolve(CapabilityIntent); got != "local" {
		t.Errorf("Resolve = %q, want local", got)
	}
	if got := r.Resolve(CapabilityChat); got != "local" {
		t.Errorf("Resolve default = %q, want local", got)
	}

	eps := r.ListEndpoints()
	if len(eps) != 1 || eps[0] != "local" {
		t.Errorf("ListEndpoints = %v", eps)
	}
	caps := r.ListCapabilities()
	if len(caps) != 1 || caps[0] != CapabilityIntent {
		t.Errorf("ListCapabilities = %v", caps)
	}
}

func TestRegistryMarshalJSON(t *testing.T) {
	r := NewDefaultRegistry()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded, err := LoadFromJSON(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded.Resolve(CapabilityIntent); got != "gpt-4.1-mini" {
		t.Errorf("loaded Resolve(intent) = %q", got)
	}
	if loaded.GetEndpoint("llama3.2") == nil {
		t.Error("expected llama3.2 endpoint after reload")
	}
}

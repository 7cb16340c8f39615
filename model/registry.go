package model

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry manages model selection based on capabilities.
// It maps capabilities to preferred endpoints with fallback chains and
// tracks endpoint health for circuit breaking.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaults     *DefaultsConfig
	health       *healthState
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	// Description explains what this capability is for.
	Description string `json:"description" yaml:"description"`

	// Preferred lists endpoints in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup endpoints if all preferred fail.
	Fallback []string `json:"fallback" yaml:"fallback"`

	// Temperature is the sampling temperature for this capability.
	// nil uses the endpoint default.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// JSONMode asks providers that support it for a JSON object response.
	JSONMode bool `json:"json_mode,omitempty" yaml:"json_mode,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the model provider (openai, anthropic, ollama).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// DefaultsConfig holds default model settings.
type DefaultsConfig struct {
	// Model is the endpoint used when no capability matches.
	Model string `json:"model" yaml:"model"`
}

// NewRegistry creates a new model registry with the given configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaults: &DefaultsConfig{
			Model: "default",
		},
	}
}

// NewDefaultRegistry creates a registry that prefers hosted OpenAI models,
// falls back to Anthropic and then to a local Ollama server.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityIntent: {
				Description: "Extract structured trip intent from a request",
				Preferred:   []string{"gpt-4.1-mini"},
				Fallback:    []string{"claude-haiku", "llama3.2"},
				Temperature: lo.ToPtr(0.2),
			},
			CapabilityItinerary: {
				Description: "Generate a day-by-day itinerary",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"claude-haiku", "llama3.2"},
				Temperature: lo.ToPtr(0.4),
				JSONMode:    true,
			},
			CapabilityChat: {
				Description: "Answer trip questions and propose itinerary edits",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"claude-haiku", "llama3.2"},
				Temperature: lo.ToPtr(0.4),
			},
		},
		endpoints: map[string]*EndpointConfig{
			"gpt-4.1-mini": {
				Provider: "openai",
				Model:    "gpt-4.1-mini",
			},
			"gpt-4o-mini": {
				Provider: "openai",
				Model:    "gpt-4o-mini",
			},
			"claude-haiku": {
				Provider:  "anthropic",
				Model:     "claude-3-5-haiku-20241022",
				MaxTokens: 4096,
			},
			"llama3.2": {
				Provider: "ollama",
				URL:      "http://localhost:11434/v1",
				Model:    "llama3.2",
			},
		},
		defaults: &DefaultsConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Resolve returns the preferred endpoint for a capability.
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaults.Model
}

// GetFallbackChain returns all endpoints for a capability in order of preference.
// Duplicate names are dropped.
func (r *Registry) GetFallbackChain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return lo.Uniq(chain)
	}
	return []string{r.defaults.Model}
}

// GetCapability returns a copy of the configuration for a capability, or nil.
func (r *Registry) GetCapability(c Capability) *CapabilityConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok {
		return nil
	}
	cp := *cfg
	cp.Preferred = slices.Clone(cfg.Preferred)
	cp.Fallback = slices.Clone(cfg.Fallback)
	return &cp
}

// GetEndpoint returns the endpoint configuration for a name.
// Returns nil if the endpoint is not configured.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetDefault sets the default endpoint.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defaults == nil {
		r.defaults = &DefaultsConfig{}
	}
	r.defaults.Model = name
}

// ListCapabilities returns all configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := lo.Keys(r.capabilities)
	slices.Sort(caps)
	return caps
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.endpoints)
	slices.Sort(names)
	return names
}

// MarshalJSON implements json.Marshaler for the registry.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToConfig())
}

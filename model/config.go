package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegistryConfig is the serialized form of a Registry.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities" yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints" yaml:"endpoints"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Validate checks that every capability names at least one endpoint and that
// every named endpoint is defined.
func (c *RegistryConfig) Validate() error {
	var errs []error
	for name, ep := range c.Endpoints {
		if ep == nil {
			errs = append(errs, fmt.Errorf("endpoint %s: empty definition", name))
			continue
		}
		if ep.Provider == "" {
			errs = append(errs, fmt.Errorf("endpoint %s: provider is required", name))
		}
		if ep.Model == "" {
			errs = append(errs, fmt.Errorf("endpoint %s: model is required", name))
		}
	}
	for name, capCfg := range c.Capabilities {
		if ParseCapability(name) == "" {
			errs = append(errs, fmt.Errorf("capability %s: unknown capability", name))
		}
		if capCfg == nil || len(capCfg.Preferred)+len(capCfg.Fallback) == 0 {
			errs = append(errs, fmt.Errorf("capability %s: no endpoints listed", name))
			continue
		}
		for _, ep := range slices.Concat(capCfg.Preferred, capCfg.Fallback) {
			if _, ok := c.Endpoints[ep]; !ok {
				errs = append(errs, fmt.Errorf("capability %s: undefined endpoint %s", name, ep))
			}
		}
	}
	return errors.Join(errs...)
}

// LoadFromFile loads a registry configuration file. Files ending in .yaml or
// .yml are parsed as YAML, anything else as JSON.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadFromYAML(data)
	default:
		return LoadFromJSON(data)
	}
}

// LoadFromJSON loads a registry from JSON data.
// Accepts either a document with a "model_registry" key or the bare registry config.
func LoadFromJSON(data []byte) (*Registry, error) {
	var wrapped struct {
		ModelRegistry *RegistryConfig `json:"model_registry"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.ModelRegistry != nil {
		return registryFromConfig(wrapped.ModelRegistry)
	}

	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return registryFromConfig(&cfg)
}

// LoadFromYAML loads a registry from YAML data, with the same wrapping rules as LoadFromJSON.
func LoadFromYAML(data []byte) (*Registry, error) {
	var wrapped struct {
		ModelRegistry *RegistryConfig `yaml:"model_registry"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && wrapped.ModelRegistry != nil {
		return registryFromConfig(wrapped.ModelRegistry)
	}

	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return registryFromConfig(&cfg)
}

func registryFromConfig(cfg *RegistryConfig) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}

	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		caps[Capability(k)] = v
	}

	endpoints := cfg.Endpoints
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}

	defaults := cfg.Defaults
	if defaults == nil {
		defaults = &DefaultsConfig{Model: "default"}
	}

	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaults:     defaults,
	}, nil
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}

	return &RegistryConfig{
		Capabilities: caps,
		Endpoints:    r.endpoints,
		Defaults:     r.defaults,
	}
}

// MergeFromConfig merges configuration into an existing registry.
// Entries in cfg overwrite existing entries of the same name.
func (r *Registry) MergeFromConfig(cfg *RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}

	for k, v := range cfg.Capabilities {
		r.capabilities[Capability(k)] = v
	}
	for k, v := range cfg.Endpoints {
		r.endpoints[k] = v
	}
	if cfg.Defaults != nil {
		r.defaults = cfg.Defaults
	}
}

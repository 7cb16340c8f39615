// Package config provides configuration loading and management for nomadplan.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/nomadplan/llm"
	"github.com/c360studio/nomadplan/model"
)

// Config represents the complete nomadplan configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Service ServiceConfig `yaml:"service"`
	LLM     LLMConfig     `yaml:"llm"`
	Geocode GeocodeConfig `yaml:"geocode"`
	Weather WeatherConfig `yaml:"weather"`
	NATS    NATSConfig    `yaml:"nats"`
}

// ServerConfig configures the HTTP gateway
type ServerConfig struct {
	// Addr is the listen address (default: ":8080")
	Addr string `yaml:"addr"`
	// ReadTimeout and WriteTimeout bound connection I/O
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// RequestTimeout bounds handler execution, including LLM calls
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RateLimit is the sustained requests per second allowed per client (0 = unlimited)
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the per-client burst size
	RateBurst int `yaml:"rate_burst"`
	// CORSOrigins lists allowed browser origins (empty = same-origin only)
	CORSOrigins []string `yaml:"cors_origins"`
}

// ServiceConfig configures the client side of the trip services
type ServiceConfig struct {
	// BaseURL is the root of the intent, itinerary and chat services
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each service call
	Timeout time.Duration `yaml:"timeout"`
	// SerialChat sends chat messages one at a time
	SerialChat bool `yaml:"serial_chat"`
}

// LLMConfig configures model access for the gateway
type LLMConfig struct {
	// RegistryFile is a YAML or JSON model registry merged over the defaults
	RegistryFile string `yaml:"registry_file"`
	// Timeout bounds a single provider HTTP call
	Timeout time.Duration `yaml:"timeout"`
	// Retry policy per endpoint
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	// Circuit breaker
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

// GeocodeConfig configures the Nominatim client
type GeocodeConfig struct {
	Disabled     bool          `yaml:"disabled"`
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	CountryCodes []string      `yaml:"country_codes"`
	RateLimit    float64       `yaml:"rate_limit"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// WeatherConfig configures the Open-Meteo client
type WeatherConfig struct {
	Disabled    bool          `yaml:"disabled"`
	GeocodeURL  string        `yaml:"geocode_url"`
	ForecastURL string        `yaml:"forecast_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// NATSConfig configures session event publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = events disabled)
	URL string `yaml:"url"`
	// SubjectPrefix is the root of event subjects
	SubjectPrefix string `yaml:"subject_prefix"`
	// Name identifies the connection to the server
	Name string `yaml:"name"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	retry := llm.DefaultRetryConfig()
	health := model.DefaultHealthConfig()
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   150 * time.Second,
			RequestTimeout: 120 * time.Second,
			RateLimit:      2,
			RateBurst:      10,
		},
		Service: ServiceConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			Timeout:           90 * time.Second,
			MaxAttempts:       retry.MaxAttempts,
			BackoffBase:       retry.BackoffBase,
			BackoffMultiplier: retry.BackoffMultiplier,
			MaxBackoff:        retry.MaxBackoff,
			FailureThreshold:  health.FailureThreshold,
			RecoveryTimeout:   health.RecoveryTimeout,
		},
		Geocode: GeocodeConfig{
			BaseURL:      "https://nominatim.openstreetmap.org",
			UserAgent:    "nomadplan/1.0 (trip planner)",
			CountryCodes: []string{"us", "ca"},
			RateLimit:    1,
			CacheTTL:     24 * time.Hour,
		},
		Weather: WeatherConfig{
			GeocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
			ForecastURL: "https://api.open-meteo.com/v1/forecast",
			CacheTTL:    30 * time.Minute,
		},
		NATS: NATSConfig{
			SubjectPrefix: "nomadplan",
			Name:          "nomadplan",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rate_burst must be at least 1 when rate limiting"))
	}
	if err := validateURL("service.base_url", c.Service.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := c.RetryConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("llm: %w", err))
	}
	if c.LLM.FailureThreshold < 1 {
		errs = append(errs, errors.New("llm.failure_threshold must be at least 1"))
	}
	if !c.Geocode.Disabled {
		if err := validateURL("geocode.base_url", c.Geocode.BaseURL); err != nil {
			errs = append(errs, err)
		}
		if c.Geocode.RateLimit < 0 {
			errs = append(errs, errors.New("geocode.rate_limit must not be negative"))
		}
	}
	if !c.Weather.Disabled {
		if err := validateURL("weather.geocode_url", c.Weather.GeocodeURL); err != nil {
			errs = append(errs, err)
		}
		if err := validateURL("weather.forecast_url", c.Weather.ForecastURL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	return nil
}

// RetryConfig returns the LLM retry policy.
func (c *Config) RetryConfig() llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts:       c.LLM.MaxAttempts,
		BackoffBase:       c.LLM.BackoffBase,
		BackoffMultiplier: c.LLM.BackoffMultiplier,
		MaxBackoff:        c.LLM.MaxBackoff,
	}
}

// HealthConfig returns the LLM endpoint circuit breaker settings.
func (c *Config) HealthConfig() model.HealthConfig {
	return model.HealthConfig{
		FailureThreshold: c.LLM.FailureThreshold,
		RecoveryTimeout:  c.LLM.RecoveryTimeout,
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	setIf(&c.Server.Addr, other.Server.Addr)
	setIf(&c.Server.ReadTimeout, other.Server.ReadTimeout)
	setIf(&c.Server.WriteTimeout, other.Server.WriteTimeout)
	setIf(&c.Server.RequestTimeout, other.Server.RequestTimeout)
	setIf(&c.Server.RateLimit, other.Server.RateLimit)
	setIf(&c.Server.RateBurst, other.Server.RateBurst)
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}

	// Service
	setIf(&c.Service.BaseURL, other.Service.BaseURL)
	setIf(&c.Service.Timeout, other.Service.Timeout)
	c.Service.SerialChat = c.Service.SerialChat || other.Service.SerialChat

	// LLM
	setIf(&c.LLM.RegistryFile, other.LLM.RegistryFile)
	setIf(&c.LLM.Timeout, other.LLM.Timeout)
	setIf(&c.LLM.MaxAttempts, other.LLM.MaxAttempts)
	setIf(&c.LLM.BackoffBase, other.LLM.BackoffBase)
	setIf(&c.LLM.BackoffMultiplier, other.LLM.BackoffMultiplier)
	setIf(&c.LLM.MaxBackoff, other.LLM.MaxBackoff)
	setIf(&c.LLM.FailureThreshold, other.LLM.FailureThreshold)
	setIf(&c.LLM.RecoveryTimeout, other.LLM.RecoveryTimeout)

	// Geocode
	c.Geocode.Disabled = c.Geocode.Disabled || other.Geocode.Disabled
	setIf(&c.Geocode.BaseURL, other.Geocode.BaseURL)
	setIf(&c.Geocode.UserAgent, other.Geocode.UserAgent)
	if len(other.Geocode.CountryCodes) > 0 {
		c.Geocode.CountryCodes = other.Geocode.CountryCodes
	}
	setIf(&c.Geocode.RateLimit, other.Geocode.RateLimit)
	setIf(&c.Geocode.CacheTTL, other.Geocode.CacheTTL)

	// Weather
	c.Weather.Disabled = c.Weather.Disabled || other.Weather.Disabled
	setIf(&c.Weather.GeocodeURL, other.Weather.GeocodeURL)
	setIf(&c.Weather.ForecastURL, other.Weather.ForecastURL)
	setIf(&c.Weather.CacheTTL, other.Weather.CacheTTL)

	// NATS
	setIf(&c.NATS.URL, other.NATS.URL)
	setIf(&c.NATS.SubjectPrefix, other.NATS.SubjectPrefix)
	setIf(&c.NATS.Name, other.NATS.Name)
}

// setIf overwrites *dst when v is not the zero value.
func setIf[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

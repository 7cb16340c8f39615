// Package geocode resolves place names to coordinates using the Nominatim
// search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent = "nomadplan/1.0 (trip planner)"

	maxResponseSize = 1024 * 1024
)

var (
	// ErrEmptyQuery is returned when the query is blank.
	ErrEmptyQuery = errors.New("geocode: empty query")

	// ErrNotFound is returned when the search has no results.
	ErrNotFound = errors.New("geocode: no results")
)

// StatusError reports a non-2xx response from the search API.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: search failed (status %d)", e.StatusCode)
}

// Point is a resolved location.
type Point struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label"`
}

// Client queries Nominatim. Outbound requests share one rate limiter; the
// public instance allows one request per second.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes []string
	limiter      *rate.Limiter
	cache        *cache.Cache
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL overrides the search endpoint.
func WithBaseURL(u string) ClientOption {
	return func(client *Client) {
		client.baseURL = u
	}
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// WithCountryCodes restricts results to the given ISO 3166-1 alpha-2 codes.
// An empty list searches worldwide.
func WithCountryCodes(codes ...string) ClientOption {
	return func(client *Client) {
		client.countryCodes = codes
	}
}

// WithRateLimit sets the outbound request rate. A non-positive rps disables
// limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(client *Client) {
		if rps <= 0 {
			client.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
	}
}

// WithCacheTTL sets how long results are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(client *Client) {
		if ttl <= 0 {
			client.cache = nil
			return
		}
		client.cache = cache.New(ttl, 2*ttl)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a geocoding client restricted to the US and Canada by
// default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      DefaultBaseURL,
		userAgent:    DefaultUserAgent,
		countryCodes: []string{"us", "ca"},
		limiter:      rate.NewLimiter(rate.Limit(1), 1),
		cache:        cache.New(24*time.Hour, time.Hour),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the best match for q.
func (c *Client) Lookup(ctx context.Context, q string) (Point, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Point{}, ErrEmptyQuery
	}

	key := strings.ToLower(strings.Join(strings.Fields(q), " "))
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.(Point), nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Point{}, fmt.Errorf("geocode: wait for rate limiter: %w", err)
	}

	p, err := c.search(ctx, q)
	if err != nil {
		return Point{}, err
	}

	if c.cache != nil {
		c.cache.Set(key, p, cache.DefaultExpiration)
	}
	return p, nil
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *Client) search(ctx context.Context, q string) (Point, error) {
	params := url.Values{
		"format":         {"json"},
		"q":              {q},
		"limit":          {"1"},
		"addressdetails": {"0"},
	}
	if len(c.countryCodes) > 0 {
		params.Set("countrycodes", strings.Join(c.countryCodes, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("geocode: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geocode: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Point{}, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Point{}, fmt.Errorf("geocode: read body: %w", err)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Point{}, fmt.Errorf("geocode: decode body: %w", err)
	}
	if len(results) == 0 {
		return Point{}, ErrNotFound
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geocode: parse lat %q: %w", first.Lat, err)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geocode: parse lon %q: %w", first.Lon, err)
	}

	c.logger.Debug("Geocoded place", "query", q, "label", first.DisplayName)
	return Point{Lat: lat, Lon: lon, Label: first.DisplayName}, nil
}

// Package weather fetches destination forecasts from Open-Meteo and condenses
// the hourly series into one summary per trip day.
package weather

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
)

const (
	DefaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// Open-Meteo serves at most 16 forecast days.
	MinDays = 1
	MaxDays = 16

	maxResponseSize = 2 * 1024 * 1024
)

var (
	// ErrEmptyPlace is returned when the place name is blank.
	ErrEmptyPlace = errors.New("weather: empty place")

	// ErrPlaceNotFound is returned when the place cannot be geocoded.
	ErrPlaceNotFound = errors.New("weather: place not found")
)

// Client queries Open-Meteo. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	geocodeURL  string
	forecastURL string
	cache       *cache.Cache
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithEndpoints overrides the geocoding and forecast URLs.
func WithEndpoints(geocodeURL, forecastURL string) ClientOption {
	return func(client *Client) {
		client.geocodeURL = geocodeURL
		client.forecastURL = forecastURL
	}
}

// WithCacheTTL sets how long forecasts are reused. Zero disables caching.
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

// NewClient creates a weather client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		geocodeURL:  DefaultGeocodeURL,
		forecastURL: DefaultForecastURL,
		cache:       cache.New(30*time.Minute, time.Hour),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Place is a geocoded forecast location.
type Place struct {
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Label joins the non-empty name parts, e.g. "Portland, Oregon, United States".
func (p Place) Label() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Admin1, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// ClampDays limits a requested day count to what the forecast API serves.
func ClampDays(days int) int {
	return max(MinDays, min(MaxDays, days))
}

// Forecast looks up place and returns its forecast for the given number of
// days, keyed "1".."N" in date order.
func (c *Client) Forecast(ctx context.Context, place string, days int) (Forecast, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, ErrEmptyPlace
	}
	days = ClampDays(days)

	key := strings.ToLower(place) + "|" + strconv.Itoa(days)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.(Forecast).Clone(), nil
		}
	}

	loc, err := c.Locate(ctx, place)
	if err != nil {
		return nil, err
	}

	hourly, err := c.fetchHourly(ctx, loc, days)
	if err != nil {
		return nil, err
	}

	fc := summarize(hourly, days)
	for k, d := range fc {
		d.Place = loc.Label()
		fc[k] = d
	}

	c.logger.Debug("Fetched forecast", "place", loc.Label(), "days", len(fc))

	if c.cache != nil {
		c.cache.Set(key, fc.Clone(), cache.DefaultExpiration)
	}
	return fc, nil
}

// Locate resolves a place name to coordinates with the Open-Meteo geocoder.
func (c *Client) Locate(ctx context.Context, name string) (Place, error) {
	q := url.Values{
		"name":     {name},
		"count":    {"1"},
		"language": {"en"},
		"format":   {"json"},
	}

	var payload struct {
		Results []Place `json:"results"`
	}
	if err := c.getJSON(ctx, c.geocodeURL+"?"+q.Encode(), &payload); err != nil {
		return Place{}, fmt.Errorf("weather: geocode %q: %w", name, err)
	}
	if len(payload.Results) == 0 {
		return Place{}, ErrPlaceNotFound
	}
	return payload.Results[0], nil
}

type hourlySeries struct {
	Time                     []string   `json:"time"`
	Temperature2m            []*float64 `json:"temperature_2m"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	WeatherCode              []*float64 `json:"weathercode"`
}

func (c *Client) fetchHourly(ctx context.Context, loc Place, days int) (hourlySeries, error) {
	q := url.Values{
		"latitude":         {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude":        {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"hourly":           {"temperature_2m,precipitation_probability,weathercode"},
		"temperature_unit": {"fahrenheit"},
		"timezone":         {"auto"},
		"forecast_days":    {strconv.Itoa(days)},
	}

	var payload struct {
		Hourly hourlySeries `json:"hourly"`
	}
	if err := c.getJSON(ctx, c.forecastURL+"?"+q.Encode(), &payload); err != nil {
		return hourlySeries{}, fmt.Errorf("weather: forecast: %w", err)
	}
	return payload.Hourly, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

package tripapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/weather"
)

// maxResponseSize limits service response bodies.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// DefaultTimeout bounds each service call when no HTTP client is supplied.
const DefaultTimeout = 60 * time.Second

// Client calls the intent, itinerary and chat services.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client for the services rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestIntent asks the intent service to extract an intent from prompt.
// Failures are *CallError values; the client never substitutes a local guess.
func (c *Client) RequestIntent(ctx context.Context, prompt string) (intent.Intent, error) {
	if strings.TrimSpace(prompt) == "" {
		return intent.Intent{}, ErrEmptyPrompt
	}

	body, err := c.post(ctx, "intent", IntentPath, IntentRequest{Prompt: prompt})
	if err != nil {
		return intent.Intent{}, err
	}

	envelope, err := decodeEnvelope("intent", body)
	if err != nil {
		return intent.Intent{}, err
	}
	raw, ok := envelope["intent"]
	if !ok || !isObject(raw) {
		return intent.Intent{}, invalidError("intent", "Intent API returned no intent.")
	}

	var in intent.Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return intent.Intent{}, invalidError("intent", "Intent API returned no intent.")
	}
	return in, nil
}

// RequestItinerary asks the itinerary service to plan in.DayCount() days.
// weatherByDay may be nil. A response without an itinerary object yields an
// empty itinerary, not an error.
func (c *Client) RequestItinerary(ctx context.Context, in intent.Intent, weatherByDay weather.Forecast) (itinerary.Itinerary, error) {
	req := ItineraryRequest{Intent: in}
	if weatherByDay != nil {
		raw, err := json.Marshal(weatherByDay)
		if err != nil {
			return nil, fmt.Errorf("tripapi: encode weather: %w", err)
		}
		req.WeatherByDay = raw
	}

	body, err := c.post(ctx, "itinerary", ItineraryPath, req)
	if err != nil {
		return nil, err
	}

	envelope, err := decodeEnvelope("itinerary", body)
	if err != nil {
		return nil, err
	}

	out := itinerary.Itinerary{}
	if raw, ok := envelope["itinerary"]; ok && isObject(raw) {
		if err := json.Unmarshal(raw, &out); err != nil {
			return itinerary.Itinerary{}, nil
		}
	}
	return out, nil
}

// SendChatMessage sends message with the current trip context. Malformed
// bodies are not failures: the raw text becomes the reply.
func (c *Client) SendChatMessage(ctx context.Context, message string, cc ChatContext) (ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return ChatReply{}, ErrEmptyMessage
	}

	wire, err := cc.Wire()
	if err != nil {
		return ChatReply{}, fmt.Errorf("tripapi: encode chat context: %w", err)
	}

	body, err := c.post(ctx, "chat", ChatPath, ChatRequest{Message: message, Context: wire})
	if err != nil {
		return ChatReply{}, err
	}
	return ParseChatReply(body), nil
}

// post sends payload as JSON and returns the 2xx response body.
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tripapi: encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tripapi: create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Service call failed", "op", op, "error", err)
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(op, err)
	}

	c.logger.Debug("Service call complete",
		"op", op,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// decodeEnvelope parses a success body as a JSON object of raw members.
func decodeEnvelope(op string, body []byte) (map[string]json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, malformedError(op, fmt.Errorf("invalid JSON body (%d bytes)", len(body)))
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, invalidError(op, fmt.Sprintf("%s API returned an unexpected document", op))
	}
	return envelope, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

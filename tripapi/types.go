// Package tripapi holds the wire types of the trip planning services and an
// HTTP client for them. The gateway package serves the same contracts.
package tripapi

import (
	"encoding/json"

	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/weather"
)

// Service routes.
const (
	IntentPath    = "/api/intent"
	ItineraryPath = "/api/itinerary"
	ChatPath      = "/api/chat"
	GeocodePath   = "/api/geocode"
)

// IntentRequest is the body of POST /api/intent.
type IntentRequest struct {
	Prompt string `json:"prompt"`
}

// IntentResponse is the success body of POST /api/intent.
type IntentResponse struct {
	Intent intent.Intent `json:"intent"`
}

// ItineraryRequest is the body of POST /api/itinerary. WeatherByDay is passed
// through to the generator untouched and is null when no forecast is known.
type ItineraryRequest struct {
	Intent       intent.Intent   `json:"intent"`
	WeatherByDay json.RawMessage `json:"weatherByDay"`
}

// ItineraryResponse is the success body of POST /api/itinerary.
type ItineraryResponse struct {
	Itinerary itinerary.Itinerary `json:"itinerary"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string             `json:"message"`
	Context ChatRequestContext `json:"context"`
}

// ChatRequestContext is the read-only trip context sent with a chat message.
// Each document is forwarded to the model as-is.
type ChatRequestContext struct {
	Intent    json.RawMessage `json:"intent,omitempty"`
	Weather   json.RawMessage `json:"weather,omitempty"`
	Itinerary json.RawMessage `json:"itinerary,omitempty"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Reply          string          `json:"reply"`
	ItineraryPatch itinerary.Patch `json:"itineraryPatch,omitempty"`
}

// ErrorResponse is the body of every non-2xx service response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Raw    string `json:"raw,omitempty"`
	Status int    `json:"status,omitempty"`
}

// ChatContext is the typed trip context the client sends with a chat message.
type ChatContext struct {
	Intent    intent.Intent
	Weather   weather.Forecast
	Itinerary itinerary.Itinerary
}

// Wire encodes the context for a ChatRequest. A nil forecast or itinerary
// is sent as an empty object.
func (cc ChatContext) Wire() (ChatRequestContext, error) {
	in, err := json.Marshal(cc.Intent)
	if err != nil {
		return ChatRequestContext{}, err
	}
	wx := json.RawMessage("{}")
	if cc.Weather != nil {
		if wx, err = json.Marshal(cc.Weather); err != nil {
			return ChatRequestContext{}, err
		}
	}
	it := json.RawMessage("{}")
	if cc.Itinerary != nil {
		if it, err = json.Marshal(cc.Itinerary); err != nil {
			return ChatRequestContext{}, err
		}
	}
	return ChatRequestContext{Intent: in, Weather: wx, Itinerary: it}, nil
}

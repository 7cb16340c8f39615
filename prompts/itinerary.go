package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/c360studio/nomadplan/intent"
)

// Bounds on the number of items the model is asked to plan per day.
const (
	MinItemsPerDay = 4
	MaxItemsPerDay = 7
)

// ItinerarySystemPrompt returns the system prompt for itinerary generation.
func ItinerarySystemPrompt() string {
	return `You are a trip-planning assistant.
Return ONLY valid JSON (no markdown, no commentary).`
}

// ItineraryUserPrompt returns the generation request for in. weatherByDay is
// the raw forecast document, or empty when none is available.
func ItineraryUserPrompt(in intent.Intent, weatherByDay json.RawMessage) string {
	days := in.DayCount()

	intentJSON, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		intentJSON = []byte("{}")
	}

	return fmt.Sprintf(`Generate an itinerary dictionary for a trip.

## Rules

- Output MUST be a JSON object with day keys: "1"..."%d".
- Each day value MUST be an array of items.
- Each item MUST have: time, period, activity, location, detail.
- Items MAY have: indoor (boolean), estCost (number, USD per group).
- time is 24h "HH:MM".
- period must be one of: morning, afternoon, evening, night.
- Use the destination city from intent.to. If unknown, still produce a generic itinerary.
- Use intent.prefs if present.
- If weather is provided, incorporate it (suggest indoor options if cold or rain).
- Keep it realistic: %d-%d items per day.

## Input intent

%s

## Weather (optional)

%s

Return JSON now.`, days, MinItemsPerDay, MaxItemsPerDay, intentJSON, indentRaw(weatherByDay, "null"))
}

// indentRaw pretty-prints raw JSON, substituting fallback for empty or null input.
func indentRaw(raw json.RawMessage, fallback string) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fallback
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return fallback
	}
	return buf.String()
}

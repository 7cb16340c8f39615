package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChatSystemPrompt returns the system prompt for the trip chat assistant.
func ChatSystemPrompt() string {
	return `You are NomadAI's trip assistant.

You MUST respond in STRICT JSON with this shape:

` + "```json" + `
{
  "reply": string,
  "itineraryPatch"?: object
}
` + "```" + `

## Rules

- Answer the user's question using ONLY the provided trip context.
- If the user asks to change the plan (add, remove or move activities, change time blocks),
  return itineraryPatch keyed by day number. Each day you include replaces that whole day,
  so include every item of a changed day, not just the edited ones.
- Leave days you did not change out of itineraryPatch.
- If no itinerary change is needed, omit itineraryPatch entirely.
- Do NOT include markdown. Do NOT include extra keys.`
}

// ChatUserPrompt wraps message with the read-only trip context. Each context
// document is raw JSON; empty documents render as {}.
func ChatUserPrompt(message string, intentJSON, weatherJSON, itineraryJSON json.RawMessage) string {
	return fmt.Sprintf(`TRIP CONTEXT (read-only):
INTENT: %s
WEATHER: %s
ITINERARY: %s

USER MESSAGE:
%s`, compactRaw(intentJSON), compactRaw(weatherJSON), compactRaw(itineraryJSON), strings.TrimSpace(message))
}

func compactRaw(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "{}"
	}
	return buf.String()
}

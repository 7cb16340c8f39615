// Package prompts builds the system and user prompts for the model-backed
// trip services: intent extraction, itinerary generation, and chat edits.
package prompts

// IntentSystemPrompt returns the system prompt for intent extraction.
// The model must answer with a single JSON object and no prose.
func IntentSystemPrompt() string {
	return `You extract structured trip intent from a user's natural language request.
Return ONLY valid JSON (no markdown, no extra text).

## Schema

` + "```json" + `
{
  "from": string | null,
  "to": string | null,
  "days": number | null,
  "people": number | null,
  "budget": number | null,
  "prefs": string[] | null
}
` + "```" + `

## Places

- "from" and "to" are location names (city, region). Correct obvious misspellings.
- Output the bare location name only, with no prefix or suffix.

## Rules

- days, people and budget are numbers, and only when explicitly stated.
- prefs are short tags like "museums", "food", "nightlife", "family friendly", "outdoors".
- If a value is missing, use null. Never guess.`
}


package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"reply": "ok"}`,
			wantKey: "reply",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"to\": \"Austin\"}\n```",
			wantKey: "to",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"to\": \"Austin\"}\n```\n\nEnjoy your trip!",
			wantKey: "to",
		},
		{
			name:    "prose around object",
			input:   "Here is the plan: {\"1\": []} Let me know.",
			wantKey: "1",
		},
		{
			name:    "comments and trailing commas",
			input:   "```json\n{\n  \"prefs\": [\n    \"food\",  // mentioned twice\n    \"museums\",\n  ],\n}\n```",
			wantKey: "prefs",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"detail": "Book at https://example.com/tickets"}`,
			wantKey: "detail",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "Sorry, I can't help with that.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}
			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}
			if _, ok := parsed[tt.wantKey]; !ok {
				t.Errorf("expected key %q in parsed JSON: %s", tt.wantKey, result)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	t.Run("valid JSON decoded directly", func(t *testing.T) {
		obj, err := DecodeObject(`  {"reply":"Sure // noted","itineraryPatch":{"1":[]}}  `)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["reply"] != "Sure // noted" {
			t.Errorf("reply = %v", obj["reply"])
		}
	})

	t.Run("fenced output", func(t *testing.T) {
		obj, err := DecodeObject("```json\n{\"days\": 3,}\n```")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["days"] != float64(3) {
			t.Errorf("days = %v", obj["days"])
		}
	})

	for _, input := range []string{"", "plain text", "[1,2,3]", "null", "{not json}"} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := DecodeObject(input)
			if !errors.Is(err, ErrNoJSONObject) {
				t.Errorf("DecodeObject(%q) error = %v, want ErrNoJSONObject", input, err)
			}
		})
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comment",
			input:    `  "to": "Denver",`,
			expected: `  "to": "Denver",`,
		},
		{
			name:     "trailing comment",
			input:    `  "to": "Denver",  // mile high`,
			expected: `  "to": "Denver",`,
		},
		{
			name:     "URL in string preserved",
			input:    `  "url": "http://example.com",`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "whole line comment",
			input:    `  // day one`,
			expected: ``,
		},
		{
			name:     "escaped quote in string",
			input:    `  "detail": "say \"hi//there\"",  // comment`,
			expected: `  "detail": "say \"hi//there\"",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripLineComment(tt.input)
			if got != tt.expected {
				t.Errorf("stripLineComment(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "trailing comma in array",
			input: `{"prefs": ["food", "art",]}`,
		},
		{
			name:  "trailing comma in object",
			input: `{"days": 2, "people": 3,}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cleanJSON(tt.input)
			var parsed any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("cleaned JSON is invalid: %v\nresult: %s", err, result)
			}
		})
	}
}

package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned by DecodeObject when the content holds no
// decodable JSON object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

var (
	// jsonBlockPattern matches an object inside a markdown code fence.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches from the first '{' to the last '}'.
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// DecodeObject parses model output as a JSON object. Content that is already
// valid JSON is decoded directly; otherwise the object is pulled out of code
// fences or surrounding prose, and comments and trailing commas are removed.
func DecodeObject(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return obj, nil
	}

	extracted := ExtractJSON(trimmed)
	if extracted == "" {
		return nil, ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(extracted), &obj); err != nil || obj == nil {
		return nil, ErrNoJSONObject
	}
	return obj, nil
}

// ExtractJSON extracts a JSON object from an LLM response string.
// It handles markdown code blocks, JavaScript-style comments, and trailing commas.
func ExtractJSON(content string) string {
	raw := extractRawJSON(content)
	if raw == "" {
		return ""
	}
	return cleanJSON(raw)
}

func extractRawJSON(content string) string {
	if matches := jsonBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	return jsonObjectPattern.FindString(content)
}

// cleanJSON removes line comments and trailing commas, which models
// commonly emit.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a // comment that starts outside a string value:
//
//	"city": "Boston", // arrival   → "city": "Boston",
//	"url": "http://example.com"    → unchanged
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// Package model provides capability-based model selection for the trip
// planning routes. Callers name the kind of work (intent extraction,
// itinerary generation, chat edits) and the registry resolves it to
// configured endpoints with fallback chains.
package model

// Capability represents a class of model work.
type Capability string

const (
	// CapabilityIntent extracts a structured trip intent from free text.
	CapabilityIntent Capability = "intent"

	// CapabilityItinerary generates a day-by-day itinerary from an intent.
	CapabilityItinerary Capability = "itinerary"

	// CapabilityChat answers questions about a trip and proposes patches.
	CapabilityChat Capability = "chat"
)

// Capabilities returns every known capability.
func Capabilities() []Capability {
	return []Capability{CapabilityIntent, CapabilityItinerary, CapabilityChat}
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityIntent, CapabilityItinerary, CapabilityChat:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}

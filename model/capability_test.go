package model

import "testing"

func TestCapabilityIsValid(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected bool
	}{
		{CapabilityIntent, true},
		{CapabilityItinerary, true},
		{CapabilityChat, true},
		{Capability("planning"), false},
		{Capability("Intent"), false},
		{Capability(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			got := tt.cap.IsValid()
			if got != tt.expected {
				t.Errorf("Capability(%q).IsValid() = %v, want %v", tt.cap, got, tt.expected)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input    string
		expected Capability
	}{
		{"intent", CapabilityIntent},
		{"itinerary", CapabilityItinerary},
		{"chat", CapabilityChat},
		{"fast", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseCapability(tt.input)
			if got != tt.expected {
				t.Errorf("ParseCapability(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	if len(caps) != 3 {
		t.Fatalf("expected 3 capabilities, got %d", len(caps))
	}
	for _, c := range caps {
		if !c.IsValid() {
			t.Errorf("capability %q should be valid", c)
		}
	}
}

func TestCapabilityString(t *testing.T) {
	if got := CapabilityItinerary.String(); got != "itinerary" {
		t.Errorf("CapabilityItinerary.String() = %q, want %q", got, "itinerary")
	}
}

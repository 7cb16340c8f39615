// Package events publishes planning session notifications. Events describe
// state changes after they are committed; they are not a persistence layer.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultSubjectPrefix is the subject root used when none is configured.
const DefaultSubjectPrefix = "nomadplan"

// Kind identifies what changed in a session.
type Kind string

const (
	// KindPhase is published when the session phase changes.
	KindPhase Kind = "phase"
	// KindIntent is published when a new intent is adopted.
	KindIntent Kind = "intent"
	// KindItinerary is published when the itinerary is replaced or patched.
	KindItinerary Kind = "itinerary"
	// KindMessage is published for every chat log entry.
	KindMessage Kind = "message"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindPhase, KindIntent, KindItinerary, KindMessage:
		return true
	default:
		return false
	}
}

// Event is a single session notification.
type Event struct {
	SessionID string          `json:"sessionId"`
	Kind      Kind            `json:"kind"`
	Time      time.Time       `json:"time"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// New builds an event with data encoded as JSON.
func New(sessionID string, kind Kind, data any) (Event, error) {
	ev := Event{SessionID: sessionID, Kind: kind, Time: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("events: encode %s data: %w", kind, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// Subject returns the subject an event is published on:
// <prefix>.session.<id>.<kind>.
func Subject(prefix, sessionID string, kind Kind) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return strings.Join([]string{prefix, "session", subjectToken(sessionID), string(kind)}, ".")
}

// subjectToken replaces characters that would split or wildcard a subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Publisher delivers session events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

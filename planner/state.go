package planner

import (
	"errors"
	"fmt"
	"slices"

	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/weather"
)

// ErrInvalidTransition is wrapped by errors from illegal phase changes.
var ErrInvalidTransition = errors.New("planner: invalid phase transition")

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the chat log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Route holds the geocoded trip endpoints. Either end may be unknown.
type Route struct {
	From *geocode.Point `json:"from,omitempty"`
	To   *geocode.Point `json:"to,omitempty"`
}

// State is the complete session state. Transitions are pure functions from
// one State to the next; the orchestrator commits them under its lock.
type State struct {
	Phase       Phase
	Epoch       uint64
	Intent      intent.Intent
	Itinerary   itinerary.Itinerary
	Messages    []Message
	PlanError   string
	ChatPending int
	Weather     weather.Forecast
	Route       Route
}

// NewState returns the state of a fresh session.
func NewState() State {
	return State{Phase: PhaseWelcome, Itinerary: itinerary.Itinerary{}}
}

func transition(s State, target Phase) (State, error) {
	if !s.Phase.CanTransitionTo(target) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, target)
	}
	s.Phase = target
	return s, nil
}

// beginPlan starts a new plan run and supersedes any running one.
func beginPlan(s State) (State, error) {
	next, err := transition(s, PhaseGenerating)
	if err != nil {
		return s, err
	}
	next.Epoch++
	next.PlanError = ""
	return next, nil
}

// planSucceeded adopts the remote intent, enrichment and generated itinerary.
func planSucceeded(s State, in intent.Intent, it itinerary.Itinerary, wx weather.Forecast, route Route) (State, error) {
	next, err := transition(s, PhaseResults)
	if err != nil {
		return s, err
	}
	if it == nil {
		it = itinerary.Itinerary{}
	}
	next.Intent = in
	next.Itinerary = it
	next.Weather = wx
	next.Route = route
	return next, nil
}

// planFellBack adopts a locally extracted intent after the intent service
// failed. The previous itinerary and enrichment no longer describe the trip.
func planFellBack(s State, in intent.Intent, planErr string) (State, error) {
	next, err := transition(s, PhaseResults)
	if err != nil {
		return s, err
	}
	next.Intent = in
	next.PlanError = planErr
	next.Itinerary = itinerary.Itinerary{}
	next.Weather = nil
	next.Route = Route{}
	return next, nil
}

// appendMessage returns s with m added to a copy of the chat log.
func appendMessage(s State, m Message) State {
	s.Messages = append(slices.Clip(s.Messages), m)
	return s
}

// applyPatch merges patch into the current itinerary.
func applyPatch(s State, patch itinerary.Patch) State {
	s.Itinerary = itinerary.Merge(s.Itinerary, patch)
	return s
}

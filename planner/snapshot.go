package planner

import (
	"slices"

	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/weather"
)

// Snapshot is a read-only copy of the session, safe to hand to renderers.
type Snapshot struct {
	SessionID     string              `json:"sessionId"`
	Phase         Phase               `json:"phase"`
	Intent        intent.Intent       `json:"intent"`
	Itinerary     itinerary.Itinerary `json:"itinerary"`
	Messages      []Message           `json:"messages"`
	PlanError     string              `json:"planError,omitempty"`
	IsChatSending bool                `json:"isChatSending"`
	Weather       weather.Forecast    `json:"weather,omitempty"`
	Route         Route               `json:"route"`
	Stats         Stats               `json:"stats"`
}

// Stats are figures derived from the intent and itinerary.
type Stats struct {
	Days            int      `json:"days"`
	Items           int      `json:"items"`
	EstimatedCost   float64  `json:"estimatedCost"`
	DailyBudget     *float64 `json:"dailyBudget,omitempty"`
	PerPersonBudget *float64 `json:"perPersonBudget,omitempty"`
}

func newSnapshot(sessionID string, s State) Snapshot {
	snap := Snapshot{
		SessionID:     sessionID,
		Phase:         s.Phase,
		Intent:        s.Intent.Clone(),
		Itinerary:     s.Itinerary.Clone(),
		Messages:      slices.Clone(s.Messages),
		PlanError:     s.PlanError,
		IsChatSending: s.ChatPending > 0,
		Weather:       s.Weather.Clone(),
		Route:         s.Route,
		Stats: Stats{
			Days:          s.Intent.DayCount(),
			Items:         s.Itinerary.ItemCount(),
			EstimatedCost: s.Itinerary.EstimatedCost(),
		},
	}
	if snap.Messages == nil {
		snap.Messages = []Message{}
	}
	if v, ok := s.Intent.DailyBudget(); ok {
		snap.Stats.DailyBudget = &v
	}
	if v, ok := s.Intent.PerPersonBudget(); ok {
		snap.Stats.PerPersonBudget = &v
	}
	return snap
}

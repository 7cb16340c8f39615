package planner

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/weather"
)

func TestBeginPlan(t *testing.T) {
	s := NewState()
	s.PlanError = "old failure"

	next, err := beginPlan(s)
	require.NoError(t, err)
	assert.Equal(t, PhaseGenerating, next.Phase)
	assert.Equal(t, uint64(1), next.Epoch)
	assert.Empty(t, next.PlanError)

	again, err := beginPlan(next)
	require.NoError(t, err, "a new plan supersedes a running one")
	assert.Equal(t, uint64(2), again.Epoch)

	assert.Equal(t, PhaseWelcome, s.Phase, "input state is untouched")
}

func TestPlanFinish_RequiresGenerating(t *testing.T) {
	_, err := planSucceeded(NewState(), intent.Intent{}, nil, nil, Route{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = planFellBack(NewState(), intent.Intent{}, "x")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPlanSucceeded(t *testing.T) {
	s, err := beginPlan(NewState())
	require.NoError(t, err)

	in := intent.Intent{To: lo.ToPtr("Boston")}
	it := itinerary.Itinerary{"1": {{Time: "09:00", Activity: "Freedom Trail"}}}
	wx := weather.Forecast{"1": {Date: "2026-05-01", Condition: "clear"}}
	route := Route{To: &geocode.Point{Lat: 42.36, Lon: -71.06, Label: "Boston"}}

	next, err := planSucceeded(s, in, it, wx, route)
	require.NoError(t, err)
	assert.Equal(t, PhaseResults, next.Phase)
	assert.Equal(t, in, next.Intent)
	assert.Equal(t, it, next.Itinerary)
	assert.Equal(t, wx, next.Weather)
	assert.Equal(t, route, next.Route)

	empty, err := planSucceeded(s, in, nil, nil, Route{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Itinerary)
}

func TestPlanFellBack_ClearsStaleResults(t *testing.T) {
	s, err := beginPlan(NewState())
	require.NoError(t, err)
	s.Itinerary = itinerary.Itinerary{"1": {{Activity: "stale"}}}
	s.Weather = weather.Forecast{"1": {}}
	s.Route = Route{To: &geocode.Point{}}

	fallback := intent.ExtractFallback("from Boston to Portland, 2 days")
	next, err := planFellBack(s, fallback, "intent API failed (500)")
	require.NoError(t, err)

	assert.Equal(t, PhaseResults, next.Phase)
	assert.Equal(t, fallback, next.Intent)
	assert.Equal(t, "intent API failed (500)", next.PlanError)
	assert.Empty(t, next.Itinerary)
	assert.Nil(t, next.Weather)
	assert.Equal(t, Route{}, next.Route)
}

func TestAppendMessage_DoesNotAlias(t *testing.T) {
	s := NewState()
	s = appendMessage(s, Message{Role: RoleUser, Content: "a"})
	before := s.Messages

	after := appendMessage(s, Message{Role: RoleAssistant, Content: "b"})
	after.Messages[0].Content = "changed"

	assert.Equal(t, "a", before[0].Content)
	assert.Len(t, before, 1)
	assert.Len(t, after.Messages, 2)
}

func TestApplyPatch(t *testing.T) {
	s := NewState()
	s.Itinerary = itinerary.Itinerary{
		"1": {{Activity: "keep"}},
		"2": {{Activity: "old"}},
	}
	original := s.Itinerary

	next := applyPatch(s, itinerary.Patch{"2": {{Activity: "new"}}})
	assert.Equal(t, "keep", next.Itinerary["1"][0].Activity)
	assert.Equal(t, "new", next.Itinerary["2"][0].Activity)
	assert.Equal(t, "old", original["2"][0].Activity)
}

func TestNewSnapshot_Stats(t *testing.T) {
	s := NewState()
	s.Intent = intent.Intent{Days: lo.ToPtr(2), People: lo.ToPtr(4), Budget: lo.ToPtr(1200.0)}
	s.Itinerary = itinerary.Itinerary{
		"1": {{Activity: "a", EstCost: lo.ToPtr(40.0)}, {Activity: "b"}},
		"2": {{Activity: "c", EstCost: lo.ToPtr(60.0)}},
	}
	s.ChatPending = 1

	snap := newSnapshot("sess", s)
	assert.Equal(t, "sess", snap.SessionID)
	assert.True(t, snap.IsChatSending)
	assert.NotNil(t, snap.Messages)
	assert.Equal(t, 2, snap.Stats.Days)
	assert.Equal(t, 3, snap.Stats.Items)
	assert.InDelta(t, 100.0, snap.Stats.EstimatedCost, 1e-9)
	require.NotNil(t, snap.Stats.DailyBudget)
	assert.InDelta(t, 600.0, *snap.Stats.DailyBudget, 1e-9)
	require.NotNil(t, snap.Stats.PerPersonBudget)
	assert.InDelta(t, 300.0, *snap.Stats.PerPersonBudget, 1e-9)

	snap.Itinerary["1"][0].Activity = "mutated"
	assert.Equal(t, "a", s.Itinerary["1"][0].Activity, "snapshot is a copy")
}

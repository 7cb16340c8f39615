// Package intent defines the normalized trip request extracted from free text.
// Every field is optional: a nil field means the value is unknown, never a default.
package intent

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/samber/lo"
)

// Intent is the structured form of a trip request.
type Intent struct {
	From   *string  `json:"from,omitempty"`
	To     *string  `json:"to,omitempty"`
	Days   *int     `json:"days,omitempty"`
	People *int     `json:"people,omitempty"`
	Budget *float64 `json:"budget,omitempty"`
	Prefs  []string `json:"prefs,omitempty"`
}

// IsEmpty reports whether no field is known.
func (i Intent) IsEmpty() bool {
	return i.From == nil && i.To == nil && i.Days == nil &&
		i.People == nil && i.Budget == nil && i.Prefs == nil
}

// DayCount returns the number of days to generate a plan for.
// Unknown or non-positive day counts plan a single day.
func (i Intent) DayCount() int {
	if i.Days != nil && *i.Days > 0 {
		return *i.Days
	}
	return 1
}

// DailyBudget returns the budget spread over the trip days.
// Both budget and days must be known.
func (i Intent) DailyBudget() (float64, bool) {
	if i.Budget == nil || i.Days == nil || *i.Days <= 0 {
		return 0, false
	}
	return *i.Budget / float64(*i.Days), true
}

// PerPersonBudget returns the budget split across travelers.
// Both budget and people must be known.
func (i Intent) PerPersonBudget() (float64, bool) {
	if i.Budget == nil || i.People == nil || *i.People <= 0 {
		return 0, false
	}
	return *i.Budget / float64(*i.People), true
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (i Intent) Clone() Intent {
	out := Intent{
		From:   clonePtr(i.From),
		To:     clonePtr(i.To),
		Days:   clonePtr(i.Days),
		People: clonePtr(i.People),
		Budget: clonePtr(i.Budget),
	}
	if i.Prefs != nil {
		out.Prefs = append([]string{}, i.Prefs...)
	}
	return out
}

// UnmarshalJSON decodes an intent leniently. Null, missing, and wrongly typed
// fields all decode as absent; a non-object document is an error.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = FromRaw(raw)
	return nil
}

// FromRaw shapes an untyped JSON object into an Intent.
// Numbers must be JSON numbers; strings are never coerced.
func FromRaw(raw map[string]any) Intent {
	var out Intent
	if raw == nil {
		return out
	}

	out.From = placeField(raw["from"])
	out.To = placeField(raw["to"])
	out.Days = positiveIntField(raw["days"])
	out.People = positiveIntField(raw["people"])
	out.Budget = positiveNumberField(raw["budget"])

	if list, ok := raw["prefs"].([]any); ok {
		prefs := lo.FilterMap(list, func(v any, _ int) (string, bool) {
			s, ok := v.(string)
			s = strings.TrimSpace(s)
			return s, ok && s != ""
		})
		if len(prefs) > 0 {
			out.Prefs = prefs
		}
	}

	return out
}

func placeField(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func positiveIntField(v any) *int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

func positiveNumberField(v any) *float64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	return &f
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

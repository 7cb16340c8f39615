// Package itinerary defines the day-keyed trip schedule and the patch merge
// used to apply conversational edits to it.
package itinerary

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"

	"github.com/samber/lo"
)

// Period is the part of the day an item belongs to.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
	PeriodNight     Period = "night"
)

// String returns the string representation of the period.
func (p Period) String() string {
	return string(p)
}

// IsValid checks if the period is one of the known values.
func (p Period) IsValid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodEvening, PeriodNight:
		return true
	default:
		return false
	}
}

// clockPattern matches 24-hour "HH:MM" times.
var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidTime reports whether s is a 24-hour "HH:MM" time.
func ValidTime(s string) bool {
	return clockPattern.MatchString(s)
}

// Item is a single scheduled activity.
type Item struct {
	Time     string   `json:"time"`
	Period   Period   `json:"period,omitempty"`
	Activity string   `json:"activity"`
	Location string   `json:"location"`
	Detail   string   `json:"detail"`
	Indoor   *bool    `json:"indoor,omitempty"`
	EstCost  *float64 `json:"estCost,omitempty"`
}

// UnmarshalJSON decodes an item leniently: wrongly typed fields are left
// empty and an unknown period is dropped.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = itemFromRaw(raw)
	return nil
}

// Itinerary maps a day key ("1", "2", ...) to that day's ordered items.
// Days may be sparse.
type Itinerary map[string][]Item

// Patch carries replacement item lists for the days it names.
type Patch map[string][]Item

// DayKey returns the key for a 1-based day number.
func DayKey(day int) string {
	return strconv.Itoa(day)
}

// ParseDayKey parses a day key. Only canonical decimal integers >= 1 are valid.
func ParseDayKey(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || strconv.Itoa(n) != key {
		return 0, false
	}
	return n, true
}

// Days returns the day numbers present, ascending.
func (it Itinerary) Days() []int {
	days := lo.FilterMap(lo.Keys(it), func(k string, _ int) (int, bool) {
		return ParseDayKey(k)
	})
	slices.Sort(days)
	return days
}

// Day returns the items for a 1-based day number.
func (it Itinerary) Day(day int) []Item {
	return it[DayKey(day)]
}

// ItemCount returns the total number of items across all days.
func (it Itinerary) ItemCount() int {
	n := 0
	for _, items := range it {
		n += len(items)
	}
	return n
}

// EstimatedCost sums the estimated cost of items that carry one.
func (it Itinerary) EstimatedCost() float64 {
	var total float64
	for _, items := range it {
		for _, item := range items {
			if item.EstCost != nil {
				total += *item.EstCost
			}
		}
	}
	return total
}

// Clone returns a copy whose day slices can be modified independently.
func (it Itinerary) Clone() Itinerary {
	out := make(Itinerary, len(it))
	for k, items := range it {
		out[k] = slices.Clone(items)
	}
	return out
}

// UnmarshalJSON decodes an itinerary leniently; see FromRaw.
func (it *Itinerary) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = FromRaw(raw)
	return nil
}

// UnmarshalJSON decodes a patch with the same rules as an itinerary.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Patch(FromRaw(raw))
	return nil
}

// FromRaw shapes an untyped JSON object into an Itinerary. Keys that are not
// day keys, day values that are not arrays, and items that are not objects
// are dropped. A nil object yields an empty itinerary.
func FromRaw(raw map[string]any) Itinerary {
	out := make(Itinerary, len(raw))
	for key, value := range raw {
		if _, ok := ParseDayKey(key); !ok {
			continue
		}
		list, ok := value.([]any)
		if !ok {
			continue
		}
		out[key] = lo.FilterMap(list, func(v any, _ int) (Item, bool) {
			obj, ok := v.(map[string]any)
			if !ok {
				return Item{}, false
			}
			return itemFromRaw(obj), true
		})
	}
	return out
}

func itemFromRaw(raw map[string]any) Item {
	item := Item{
		Time:     stringField(raw["time"]),
		Activity: stringField(raw["activity"]),
		Location: stringField(raw["location"]),
		Detail:   stringField(raw["detail"]),
	}
	if p := Period(stringField(raw["period"])); p.IsValid() {
		item.Period = p
	}
	if b, ok := raw["indoor"].(bool); ok {
		item.Indoor = &b
	}
	if f, ok := raw["estCost"].(float64); ok && f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f) {
		item.EstCost = &f
	}
	return item
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

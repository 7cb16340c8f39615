package itinerary

import "slices"

// Merge applies patch onto current and returns the result as a new map.
// Each day named in the patch fully replaces that day's items; days absent
// from the patch are carried over. Neither input is modified, and applying
// the same patch twice gives the same result as applying it once.
func Merge(current Itinerary, patch Patch) Itinerary {
	out := current.Clone()
	for day, items := range patch {
		out[day] = slices.Clone(items)
	}
	return out
}

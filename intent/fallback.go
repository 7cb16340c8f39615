package intent

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Clamp ranges for heuristically derived counts.
const (
	MinDays   = 1
	MaxDays   = 30
	MinPeople = 1
	MaxPeople = 20
)

// Pre-compiled patterns for the heuristic extractor. Order matters: the
// "from A to B" form is tried before the weaker "A to B" form.
var (
	fromToPattern   = regexp.MustCompile(`(?i)from\s+(.+?)\s+to\s+(.+?)(?:[.,]|$)`)
	simpleToPattern = regexp.MustCompile(`(?i)(.+?)\s+to\s+(.+?)(?:[.,]|$)`)
	daysPattern     = regexp.MustCompile(`(?i)(\d+)\s*days?\b`)
	peoplePattern   = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons|travelers|travellers)\b`)
	familyPattern   = regexp.MustCompile(`(?i)family\s+of\s+(\d+)\b`)
	dollarPattern   = regexp.MustCompile(`\$\s*(-?)([0-9,]+)\b`)
	currencyPattern = regexp.MustCompile(`(?i)([0-9,]+)\s*(?:usd|dollars?)\b`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// ExtractFallback derives an Intent from text using local patterns only.
// It is deterministic, performs no I/O, and never fails: text that matches
// nothing yields an Intent with every field absent.
func ExtractFallback(text string) Intent {
	t := strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	var out Intent

	route := fromToPattern.FindStringSubmatch(t)
	if route == nil {
		route = simpleToPattern.FindStringSubmatch(t)
	}
	if route != nil {
		out.From = cleanPlace(route[1])
		out.To = cleanPlace(route[2])
	}

	if m := daysPattern.FindStringSubmatch(t); m != nil {
		out.Days = clampInt(m[1], MinDays, MaxDays)
	}

	people := peoplePattern.FindStringSubmatch(t)
	if people == nil {
		people = familyPattern.FindStringSubmatch(t)
	}
	if people != nil {
		out.People = clampInt(people[1], MinPeople, MaxPeople)
	}

	if m := dollarPattern.FindStringSubmatchIndex(t); m != nil {
		if m[2] == m[3] && !negatedAt(t, m[0]) {
			out.Budget = parseMoney(t[m[4]:m[5]])
		}
	} else if m := currencyPattern.FindStringSubmatchIndex(t); m != nil {
		if !negatedAt(t, m[0]) {
			out.Budget = parseMoney(t[m[2]:m[3]])
		}
	}

	return out
}

// negatedAt reports whether the match starting at i carries a leading minus
// sign. A hyphen right after a digit or comma joins a range ("2,000-3,000").
func negatedAt(t string, i int) bool {
	if i == 0 || t[i-1] != '-' {
		return false
	}
	if i == 1 {
		return true
	}
	c := t[i-2]
	return (c < '0' || c > '9') && c != ','
}

func cleanPlace(s string) *string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.NewReplacer(`"`, "", "'", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// clampInt parses a run of digits and clamps it into [lo, hi]. Numbers too
// large for an int clamp to hi rather than being dropped.
func clampInt(digits string, lo, hi int) *int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) {
			return nil
		}
		n = hi
	}
	n = max(lo, min(hi, n))
	return &n
}

func parseMoney(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || v <= 0 {
		return nil
	}
	return &v
}

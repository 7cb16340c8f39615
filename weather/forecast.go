package weather

import (
	"maps"
	"slices"
	"strconv"

	"github.com/samber/lo"
)

// WetThreshold is the precipitation probability (percent) at which a day
// counts as wet regardless of its weather code.
const WetThreshold = 50

// Day summarizes one local calendar day of hourly forecast data.
type Day struct {
	Date       string   `json:"date"`
	Place      string   `json:"place,omitempty"`
	MinTempF   *float64 `json:"minTempF,omitempty"`
	MaxTempF   *float64 `json:"maxTempF,omitempty"`
	PrecipProb *float64 `json:"precipProb,omitempty"`
	Code       *int     `json:"code,omitempty"`
	Condition  string   `json:"condition"`
	Wet        bool     `json:"wet"`
	Hours      int      `json:"hours"`
}

// Forecast maps a trip day key ("1", "2", ...) to that day's summary.
type Forecast map[string]Day

// Clone returns an independent copy.
func (f Forecast) Clone() Forecast {
	return maps.Clone(f)
}

// Condition returns a short label for a WMO weather code.
func Condition(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code == 1 || code == 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95 && code <= 99:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

// precipitating reports whether a WMO code describes falling precipitation.
func precipitating(code int) bool {
	return code >= 51
}

// summarize groups hourly points by local date and keeps the first maxDays
// dates. Missing or null samples are skipped.
func summarize(h hourlySeries, maxDays int) Forecast {
	byDate := make(map[string]*Day)
	for i, ts := range h.Time {
		if len(ts) < 10 {
			continue
		}
		date := ts[:10]
		d, ok := byDate[date]
		if !ok {
			d = &Day{Date: date}
			byDate[date] = d
		}
		d.Hours++

		if t := sample(h.Temperature2m, i); t != nil {
			if d.MinTempF == nil || *t < *d.MinTempF {
				d.MinTempF = lo.ToPtr(*t)
			}
			if d.MaxTempF == nil || *t > *d.MaxTempF {
				d.MaxTempF = lo.ToPtr(*t)
			}
		}
		if p := sample(h.PrecipitationProbability, i); p != nil {
			if d.PrecipProb == nil || *p > *d.PrecipProb {
				d.PrecipProb = lo.ToPtr(*p)
			}
		}
		if c := sample(h.WeatherCode, i); c != nil {
			code := int(*c)
			if d.Code == nil || code > *d.Code {
				d.Code = lo.ToPtr(code)
			}
		}
	}

	dates := slices.Sorted(maps.Keys(byDate))
	if len(dates) > maxDays {
		dates = dates[:maxDays]
	}

	out := make(Forecast, len(dates))
	for i, date := range dates {
		d := *byDate[date]
		if d.Code != nil {
			d.Condition = Condition(*d.Code)
			d.Wet = precipitating(*d.Code)
		} else {
			d.Condition = "unknown"
		}
		if d.PrecipProb != nil && *d.PrecipProb >= WetThreshold {
			d.Wet = true
		}
		out[strconv.Itoa(i+1)] = d
	}
	return out
}

func sample(series []*float64, i int) *float64 {
	if i >= len(series) {
		return nil
	}
	return series[i]
}

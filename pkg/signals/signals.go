// Package signals maps external weather and sports feeds onto categorical
// attendance multipliers. Fetches are blocking with short timeouts and a
// local TTL cache; any failure degrades to a neutral multiplier instead
// of surfacing as a prediction error.
package signals

import (
	"context"
	"strings"
	"time"
)

// Event is a sports fixture relevant to the venue's evening traffic.
type Event struct {
	Start       time.Time `json:"start"`
	Competition string    `json:"competition"`
	Home        string    `json:"home"`
	Away        string    `json:"away"`
}

// Source supplies signal-derived multipliers to the forecasting engine.
// Implementations must never fail: unknown conditions map to 1.0.
type Source interface {
	// WeatherForHour returns the weather category key and its multiplier
	// for one hour of the target date.
	WeatherForHour(ctx context.Context, date time.Time, hour int) (key string, multiplier float64)
	// SportsMultiplier returns the attendance multiplier for one hour,
	// dampened when a big match overlaps the evening.
	SportsMultiplier(ctx context.Context, date time.Time, hour int) float64
	// SportsEvents lists fixtures on the date, for traceability.
	SportsEvents(ctx context.Context, date time.Time) []Event
}

// weather category keys and their hand-authored multipliers. Good weather
// pulls people outdoors; bad weather pushes them into the cinema, up to
// the point where heavy conditions keep them home instead.
const (
	WeatherSunnyWarm = "sunny_warm"
	WeatherSunnyMild = "sunny_mild"
	WeatherCloudy    = "cloudy"
	WeatherRain      = "rain"
	WeatherHeavyRain = "heavy_rain"
	WeatherSnow      = "snow"
	WeatherFrost     = "frost"
	WeatherUnknown   = "unknown"
)

var weatherMultipliers = map[string]float64{
	WeatherSunnyWarm: 0.85,
	WeatherSunnyMild: 0.95,
	WeatherCloudy:    1.05,
	WeatherRain:      1.15,
	WeatherHeavyRain: 1.08,
	WeatherSnow:      1.05,
	WeatherFrost:     0.95,
	WeatherUnknown:   1.0,
}

// WeatherMultiplier returns the multiplier for a category key, 1.0 for
// anything unknown.
func WeatherMultiplier(key string) float64 {
	if m, ok := weatherMultipliers[key]; ok {
		return m
	}
	return 1.0
}

// ClassifyWeather maps a WMO weather code and temperature to a category
// key. Codes follow the common interpretation used by open weather APIs:
// 0-1 clear, 2-3 cloudy, 51-67 rain, 71-77 snow, 80+ showers/storms.
func ClassifyWeather(code int, temperatureC float64) string {
	switch {
	case code >= 80, code >= 61 && code <= 67:
		return WeatherHeavyRain
	case code >= 51 && code <= 60:
		return WeatherRain
	case code >= 71 && code <= 77:
		return WeatherSnow
	case code >= 2 && code <= 48:
		return WeatherCloudy
	case code <= 1 && temperatureC >= 20:
		return WeatherSunnyWarm
	case code <= 1 && temperatureC >= 8:
		return WeatherSunnyMild
	case temperatureC < -5:
		return WeatherFrost
	case code <= 1:
		return WeatherSunnyMild
	default:
		return WeatherUnknown
	}
}

// sports categories by competition keywords.
const (
	sportsNone  = "none"
	sportsMinor = "minor"
	sportsMajor = "major"
	sportsDerby = "derby"
)

var sportsMultipliers = map[string]float64{
	sportsNone:  1.0,
	sportsMinor: 0.97,
	sportsMajor: 0.88,
	sportsDerby: 0.80,
}

// ClassifySports grades a fixture by competition name.
func ClassifySports(ev Event) string {
	comp := strings.ToLower(ev.Competition)
	switch {
	case strings.Contains(comp, "derby"):
		return sportsDerby
	case strings.Contains(comp, "champions league"), strings.Contains(comp, "world cup"),
		strings.Contains(comp, "euro"), strings.Contains(comp, "final"):
		return sportsMajor
	case comp != "":
		return sportsMinor
	default:
		return sportsNone
	}
}

// SportsHourMultiplier dampens the hours a fixture overlaps: the match
// window itself plus the following hour (post-match traffic is spent on
// the game, not the cinema).
func SportsHourMultiplier(events []Event, date time.Time, hour int) float64 {
	mult := 1.0
	for _, ev := range events {
		if ev.Start.Year() != date.Year() || ev.Start.YearDay() != date.YearDay() {
			continue
		}
		start := ev.Start.Hour()
		if hour < start || hour > start+3 {
			continue
		}
		if m := sportsMultipliers[ClassifySports(ev)]; m < mult {
			mult = m
		}
	}
	return mult
}

// Neutral is a Source that always answers 1.0. Used when no signal
// endpoints are configured and as a degradation target in tests.
type Neutral struct{}

func (Neutral) WeatherForHour(context.Context, time.Time, int) (string, float64) {
	return WeatherUnknown, 1.0
}
func (Neutral) SportsMultiplier(context.Context, time.Time, int) float64 { return 1.0 }
func (Neutral) SportsEvents(context.Context, time.Time) []Event         { return nil }

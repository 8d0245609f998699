package forecast

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/learning"
	"github.com/seatcast-dev/seatcast/pkg/premiere"
)

const (
	// Venue-wide baseline occupancy rate a multiplier of 1.0 maps to.
	baselineOccupancyRate = 0.15

	// Movie-specific history: occupancy above this rate earns a
	// super-linear boost, and the final ratio is clamped.
	saturationRate      = 0.80
	saturationSlope     = 2.5
	movieHistoryMin     = 0.5
	movieHistoryMax     = 4.0
	movieHistorySamples = 3
)

// MovieContext describes the movie behind a screening.
type MovieContext struct {
	Title       string    `json:"title"`
	Genres      []string  `json:"genres"`
	Director    string    `json:"director,omitempty"`
	Country     string    `json:"country,omitempty"`
	IMDBRating  float64   `json:"imdb_rating,omitempty"`
	ReleaseDate time.Time `json:"release_date,omitempty"`
}

func (m MovieContext) premiereMovie() premiere.Movie {
	return premiere.Movie{
		Title:       m.Title,
		Genres:      m.Genres,
		Director:    m.Director,
		Country:     m.Country,
		IMDBRating:  m.IMDBRating,
		ReleaseDate: m.ReleaseDate,
	}
}

// hourBand buckets the operating day for the genre pattern tables.
func hourBand(hour int) string {
	switch {
	case hour <= 12:
		return "morning"
	case hour <= 17:
		return "afternoon"
	case hour <= 21:
		return "evening"
	default:
		return "late"
	}
}

// genrePattern is one entry of the ordered pattern chain; the first
// pattern whose keyword matches any genre wins.
type genrePattern struct {
	name     string
	keywords []string
	weekend  map[string]float64
	weekday  map[string]float64
}

// genrePatterns is evaluated in order; reordering changes behavior.
var genrePatterns = []genrePattern{
	{
		name:     "family",
		keywords: []string{"family", "animation", "kids"},
		weekend:  map[string]float64{"morning": 1.35, "afternoon": 1.25, "evening": 0.75, "late": 0.40},
		weekday:  map[string]float64{"morning": 0.70, "afternoon": 1.10, "evening": 0.70, "late": 0.40},
	},
	{
		name:     "horror",
		keywords: []string{"horror", "thriller"},
		weekend:  map[string]float64{"morning": 0.50, "afternoon": 0.80, "evening": 1.20, "late": 1.40},
		weekday:  map[string]float64{"morning": 0.45, "afternoon": 0.70, "evening": 1.20, "late": 1.30},
	},
	{
		name:     "action",
		keywords: []string{"action", "sci-fi", "adventure"},
		weekend:  map[string]float64{"morning": 0.70, "afternoon": 1.05, "evening": 1.20, "late": 1.10},
		weekday:  map[string]float64{"morning": 0.60, "afternoon": 0.90, "evening": 1.20, "late": 1.05},
	},
	{
		name:     "drama",
		keywords: []string{"drama", "romance", "biograph"},
		weekend:  map[string]float64{"morning": 0.80, "afternoon": 1.00, "evening": 1.15, "late": 0.90},
		weekday:  map[string]float64{"morning": 0.70, "afternoon": 0.95, "evening": 1.15, "late": 0.85},
	},
}

var defaultPattern = genrePattern{
	name:    "default",
	weekend: map[string]float64{"morning": 0.85, "afternoon": 1.00, "evening": 1.15, "late": 0.95},
	weekday: map[string]float64{"morning": 0.75, "afternoon": 0.95, "evening": 1.15, "late": 0.90},
}

func matchGenrePattern(genres []string) genrePattern {
	for _, p := range genrePatterns {
		for _, kw := range p.keywords {
			for _, g := range genres {
				if strings.Contains(strings.ToLower(g), kw) {
					return p
				}
			}
		}
	}
	return defaultPattern
}

func (p genrePattern) multiplier(dayType calendar.DayType, hour int) float64 {
	band := hourBand(hour)
	if dayType == calendar.Weekend {
		return p.weekend[band]
	}
	return p.weekday[band]
}

// childrenScheduleMultiplier models when children's audiences actually
// show up: weekend daytimes, weekday afternoons after school, never late.
func childrenScheduleMultiplier(dayType calendar.DayType, hour int) float64 {
	if dayType == calendar.Weekend {
		switch {
		case hour <= 12:
			return 1.25
		case hour <= 16:
			return 1.15
		case hour <= 18:
			return 0.90
		default:
			return 0.50
		}
	}
	switch {
	case hour <= 14:
		return 0.70 // school hours
	case hour <= 17:
		return 1.10
	case hour <= 18:
		return 0.80
	default:
		return 0.45
	}
}

func isChildrensMovie(genres []string) bool {
	for _, g := range genres {
		lg := strings.ToLower(g)
		if strings.Contains(lg, "family") || strings.Contains(lg, "animation") || strings.Contains(lg, "kids") {
			return true
		}
	}
	return false
}

// movieHistoryMultiplier compares a title's own track record against the
// venue baseline rate, boosting titles that keep selling out and blending
// toward neutral when the sample is thin.
func (e *Engine) movieHistoryMultiplier(title string) (float64, int) {
	th, ok := e.history.TitleStats(title)
	if !ok || th.TotalSeats == 0 {
		return 1.0, 0
	}
	occ := th.OccupancyRate()
	ratio := occ / baselineOccupancyRate
	if occ > saturationRate {
		ratio *= 1 + (occ-saturationRate)*saturationSlope
	}
	ratio = math.Min(movieHistoryMax, math.Max(movieHistoryMin, ratio))

	// 1-2 data points barely move the needle; 3+ get full effect.
	blend := math.Min(1, float64(th.Days)/movieHistorySamples)
	return 1 + (ratio-1)*blend, th.Days
}

// PredictScreening forecasts final occupancy for a single screening.
func (e *Engine) PredictScreening(ctx context.Context, req ScreeningRequest) (*ScreeningPrediction, error) {
	_ = ctx
	weights := e.tuner.Current(req.DayType)
	defaults := learning.DefaultWeights()

	pattern := defaultPattern
	premiereMult := 1.0
	childrenMult := 1.0
	historyMult := 1.0
	historyDays := 0

	if req.Movie != nil {
		pattern = matchGenrePattern(req.Movie.Genres)
		premiereMult = premiere.DayMultiplier(req.Movie.premiereMovie(), e.now())
		if isChildrensMovie(req.Movie.Genres) {
			childrenMult = childrenScheduleMultiplier(req.DayType, req.Hour)
		}
		historyMult, historyDays = e.movieHistoryMultiplier(req.Movie.Title)
	}

	genreMult := pattern.multiplier(req.DayType, req.Hour)

	// Historical hourly records carry a pattern multiplier slot that the
	// pipeline never populates; it stays neutral until it does.
	hourPatternMult := 1.0

	combined := scaleTowardNeutral(genreMult, weights.Genre/defaults.Genre) *
		scaleTowardNeutral(premiereMult, weights.Premiere/defaults.Premiere) *
		childrenMult * historyMult * hourPatternMult

	expected := int(math.Round(float64(req.TotalSeats) * baselineOccupancyRate * combined))
	if expected < req.CurrentOccupied {
		expected = req.CurrentOccupied // sold seats don't unsell
	}
	if req.TotalSeats > 0 && expected > req.TotalSeats {
		expected = req.TotalSeats
	}

	rate := 0.0
	if req.TotalSeats > 0 {
		rate = float64(expected) / float64(req.TotalSeats)
	}

	confidence := 0.35 + 0.45*math.Min(1, float64(historyDays)/movieHistorySamples)
	if e.history.Days() >= minUsefulDays {
		confidence += 0.20
	}

	sp := &ScreeningPrediction{
		Hour:              req.Hour,
		PredictedOccupied: expected,
		PredictedRate:     rate,
		Confidence:        confidence,
		Multipliers: map[string]float64{
			"genre_pattern": genreMult,
			"premiere":      premiereMult,
			"children":      childrenMult,
			"movie_history": historyMult,
			"hour_pattern":  hourPatternMult,
		},
	}
	e.logger.Debug("screening prediction",
		"hour", req.Hour, "day_type", req.DayType,
		"pattern", pattern.name, "expected", expected, "rate", rate)
	return sp, nil
}

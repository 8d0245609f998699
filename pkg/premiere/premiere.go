// Package premiere models how fast a movie's draw decays after release.
// Rule order is a contract: the first matching rule wins, and reordering
// changes behavior. Tests pin the order.
package premiere

import (
	"math"
	"strings"
	"time"
)

// Movie is the context needed to select a decay profile.
type Movie struct {
	Title       string
	Genres      []string
	Director    string
	Country     string // ISO 3166-1 alpha-2, case-insensitive
	IMDBRating  float64
	ReleaseDate time.Time
}

const defaultDecayBase = 0.50

// eventDirectors are names whose releases behave like events: the
// audience shows up for weeks, not days.
var eventDirectors = []string{
	"christopher nolan",
	"denis villeneuve",
	"quentin tarantino",
	"wes anderson",
	"greta gerwig",
	"patryk vega",
}

// fandomKeywords mark titles whose audience front-loads into the opening
// weekend and vanishes after.
var fandomKeywords = []string{
	"horror", "sci-fi", "science fiction", "superhero",
	"marvel", "dc", "star wars", "avengers", "batman", "spider",
}

// curriculumTitles are school-reading adaptations; class trips keep them
// alive long past release.
var curriculumTitles = []string{
	"pan tadeusz", "quo vadis", "lalka", "chłopi", "krzyżacy", "wesele",
}

var qualityKeywords = []string{"drama", "biograph", "award", "historical"}

var neighborCountries = map[string]bool{"cz": true}

var regionalCountries = map[string]bool{
	"sk": true, "hu": true, "lt": true, "ua": true, "de": true, "at": true,
}

// rule is one entry of the ordered decay-base chain.
type rule struct {
	name  string
	match func(Movie) bool
	base  float64
}

// decayRules is evaluated top to bottom; first match wins.
var decayRules = []rule{
	{"imdb_excellent", func(m Movie) bool { return m.IMDBRating >= 8.0 }, 0.85},
	{"imdb_strong", func(m Movie) bool { return m.IMDBRating >= 7.5 }, 0.75},
	{"event_director", isEventDirector, 0.70},
	{"domestic_comedy", func(m Movie) bool { return isDomestic(m) && hasGenre(m, "comedy") }, 0.60},
	{"domestic", isDomestic, 0.70},
	{"neighbor", func(m Movie) bool { return neighborCountries[countryOf(m)] }, 0.65},
	{"regional", func(m Movie) bool { return regionalCountries[countryOf(m)] }, 0.55},
	{"fandom", isFandom, 0.30},
	{"curriculum", isCurriculum, 0.85},
	{"quality", isQuality, 0.70},
	{"animation", func(m Movie) bool { return hasGenre(m, "animation") }, 0.65},
}

// DecayBase selects the weekly decay base for a movie and names the rule
// that matched, "default" when none did.
func DecayBase(m Movie) (base float64, ruleName string) {
	for _, r := range decayRules {
		if r.match(m) {
			return r.base, r.name
		}
	}
	return defaultDecayBase, "default"
}

// DayMultiplier returns the release-cycle multiplier for a date. The
// opening tiers are fixed; past the first week the curve decays
// geometrically with a floor of 0.15.
func DayMultiplier(m Movie, date time.Time) float64 {
	if m.ReleaseDate.IsZero() {
		return 1.0
	}
	days := int(date.Sub(m.ReleaseDate).Hours() / 24)
	switch {
	case days < 0:
		return 1.5 // pre-release buzz (previews, fan screenings)
	case days <= 3:
		return 1.4
	case days <= 7:
		return 1.2
	}
	base, _ := DecayBase(m)
	return math.Max(0.15, math.Pow(base, float64(days)/14.0))
}

func countryOf(m Movie) string { return strings.ToLower(strings.TrimSpace(m.Country)) }

func isDomestic(m Movie) bool { return countryOf(m) == "pl" }

func isEventDirector(m Movie) bool {
	d := strings.ToLower(strings.TrimSpace(m.Director))
	if d == "" {
		return false
	}
	for _, name := range eventDirectors {
		if d == name {
			return true
		}
	}
	return false
}

func hasGenre(m Movie, genre string) bool {
	for _, g := range m.Genres {
		if strings.EqualFold(strings.TrimSpace(g), genre) {
			return true
		}
	}
	return false
}

func isFandom(m Movie) bool {
	title := strings.ToLower(m.Title)
	for _, kw := range fandomKeywords {
		if strings.Contains(title, kw) {
			return true
		}
		for _, g := range m.Genres {
			if strings.Contains(strings.ToLower(g), kw) {
				return true
			}
		}
	}
	return false
}

func isCurriculum(m Movie) bool {
	title := strings.ToLower(m.Title)
	for _, t := range curriculumTitles {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

func isQuality(m Movie) bool {
	for _, kw := range qualityKeywords {
		for _, g := range m.Genres {
			if strings.Contains(strings.ToLower(g), kw) {
				return true
			}
		}
	}
	return false
}

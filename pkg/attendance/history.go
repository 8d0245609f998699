// Package attendance loads finalized daily attendance records and indexes
// them for baseline estimation. Records are produced by an external
// scraper as one JSON file per day; this package only reads them.
package attendance

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/seatcast-dev/seatcast/pkg/calendar"
)

const (
	// OpenHour and CloseHour bound the operating day. Hours outside
	// [OpenHour, CloseHour] are ignored everywhere.
	OpenHour  = 10
	CloseHour = 23

	// recency decay: a record halfLife days old weighs e^-1 of a fresh one.
	halfLifeDays = 14.0
	maxAgeDays   = 90
)

// HourCount is one hour of observed attendance.
type HourCount struct {
	Occupied   int `json:"occupied"`
	Total      int `json:"total"`
	Screenings int `json:"screenings"`
}

// TitleStats aggregates one movie's performance on a given day.
type TitleStats struct {
	Title         string   `json:"title"`
	Genres        []string `json:"genres"`
	TotalOccupied int      `json:"occupied"`
	TotalSeats    int      `json:"seats"`
}

// HistoryRecord is one finalized day of attendance. Immutable once loaded.
type HistoryRecord struct {
	Date    time.Time         `json:"-"`
	DayType calendar.DayType  `json:"-"`
	Weight  float64           `json:"-"`
	Hours   map[int]HourCount `json:"-"`
	Titles  []TitleStats      `json:"-"`
}

// dayFile is the on-disk schema written by the scraper.
type dayFile struct {
	Date   string               `json:"date"`
	Hours  map[string]HourCount `json:"hours"`
	Movies []TitleStats         `json:"movies"`
}

// TitleHistory summarizes a single title across all loaded days.
type TitleHistory struct {
	Title         string
	Days          int
	TotalOccupied int
	TotalSeats    int
}

// OccupancyRate returns occupied/seats, 0 when no seats were recorded.
func (h TitleHistory) OccupancyRate() float64 {
	if h.TotalSeats == 0 {
		return 0
	}
	return float64(h.TotalOccupied) / float64(h.TotalSeats)
}

// Index holds all usable history for one engine instantiation, bucketed
// by day type, genre and title. Rebuilt from source files on construction;
// never updated incrementally.
type Index struct {
	records []HistoryRecord
	byType  map[calendar.DayType][]HistoryRecord
	byGenre map[string][]HistoryRecord
	byTitle map[string]TitleHistory
}

// LoadDir builds an Index from day-*.json files under dir. Days older
// than 90 days relative to now are skipped; unreadable files are logged
// and skipped rather than failing the whole load.
func LoadDir(dir string, now time.Time, logger *slog.Logger) (*Index, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "day-*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing history dir %s: %w", dir, err)
	}
	sort.Strings(matches)

	idx := &Index{
		byType:  make(map[calendar.DayType][]HistoryRecord),
		byGenre: make(map[string][]HistoryRecord),
		byTitle: make(map[string]TitleHistory),
	}

	for _, path := range matches {
		rec, err := loadDay(path, now)
		if err != nil {
			logger.Warn("skipping unreadable history file", "path", path, "error", err)
			continue
		}
		if rec == nil {
			continue // too old
		}
		idx.add(*rec)
	}

	logger.Debug("history loaded",
		"days", len(idx.records),
		"weekend", len(idx.byType[calendar.Weekend]),
		"workday", len(idx.byType[calendar.Workday]),
		"tuesday", len(idx.byType[calendar.Tuesday]))
	return idx, nil
}

// NewIndex builds an Index from already-decoded records. Used by tests
// and by callers that fetch history from somewhere other than disk.
func NewIndex(records []HistoryRecord) *Index {
	idx := &Index{
		byType:  make(map[calendar.DayType][]HistoryRecord),
		byGenre: make(map[string][]HistoryRecord),
		byTitle: make(map[string]TitleHistory),
	}
	for _, rec := range records {
		if rec.DayType == "" {
			rec.DayType = calendar.Classify(rec.Date)
		}
		idx.add(rec)
	}
	return idx
}

func loadDay(path string, now time.Time) (*HistoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var df dayFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	date, err := time.Parse("2006-01-02", df.Date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", df.Date, err)
	}

	daysAgo := now.Sub(date).Hours() / 24
	if daysAgo > maxAgeDays || daysAgo < 0 {
		return nil, nil
	}

	hours := make(map[int]HourCount, len(df.Hours))
	for hs, hc := range df.Hours {
		var h int
		if _, err := fmt.Sscanf(hs, "%d", &h); err != nil {
			continue
		}
		if h < OpenHour || h > CloseHour {
			continue
		}
		hours[h] = hc
	}

	return &HistoryRecord{
		Date:    date,
		DayType: calendar.Classify(date),
		Weight:  RecencyWeight(daysAgo),
		Hours:   hours,
		Titles:  df.Movies,
	}, nil
}

// RecencyWeight returns exp(-daysAgo/halfLife).
func RecencyWeight(daysAgo float64) float64 {
	if daysAgo < 0 {
		daysAgo = 0
	}
	return math.Exp(-daysAgo / halfLifeDays)
}

func (idx *Index) add(rec HistoryRecord) {
	idx.records = append(idx.records, rec)
	idx.byType[rec.DayType] = append(idx.byType[rec.DayType], rec)

	seen := make(map[string]bool)
	for _, title := range rec.Titles {
		th := idx.byTitle[normalizeTitle(title.Title)]
		th.Title = title.Title
		th.Days++
		th.TotalOccupied += title.TotalOccupied
		th.TotalSeats += title.TotalSeats
		idx.byTitle[normalizeTitle(title.Title)] = th

		for _, g := range title.Genres {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" || seen[g] {
				continue
			}
			seen[g] = true
			idx.byGenre[g] = append(idx.byGenre[g], rec)
		}
	}
}

// Days returns the number of loaded days.
func (idx *Index) Days() int { return len(idx.records) }

// ForDayType returns records of the exact day type, no fallback.
func (idx *Index) ForDayType(dt calendar.DayType) []HistoryRecord {
	return idx.byType[dt]
}

// SamplesFor resolves the fallback chain for a day type: the type itself,
// then its FallbackOrder substitutes, then the pooled mixed set. The
// returned label names which bucket actually served.
func (idx *Index) SamplesFor(dt calendar.DayType) (records []HistoryRecord, source string) {
	for _, cand := range calendar.FallbackOrder(dt) {
		if recs := idx.byType[cand]; len(recs) > 0 {
			return recs, string(cand)
		}
	}
	if len(idx.records) > 0 {
		return idx.records, "mixed"
	}
	return nil, ""
}

// ForGenre returns records containing at least one title of the genre.
func (idx *Index) ForGenre(genre string) []HistoryRecord {
	return idx.byGenre[strings.ToLower(strings.TrimSpace(genre))]
}

// TitleStats returns aggregate history for a title, matched
// case-insensitively.
func (idx *Index) TitleStats(title string) (TitleHistory, bool) {
	th, ok := idx.byTitle[normalizeTitle(title)]
	return th, ok
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

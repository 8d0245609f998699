// Package factors holds the learned multiplier state of the forecasting
// engine. Each factor is a (type, key) pair whose value starts at a
// hand-authored default and drifts as the attribution learner assigns
// blame for forecast errors.
package factors

import (
	"errors"
	"fmt"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/store"
)

// Type is the closed set of factor categories. Factor structure is
// hand-authored; only magnitudes are learned.
type Type string

const (
	Holiday Type = "holiday"
	Weather Type = "weather"
	Season  Type = "season"
	Payday  Type = "payday"
)

// Types lists all factor types in stable order.
var Types = []Type{Holiday, Weather, Season, Payday}

const (
	// MinMultiplier and MaxMultiplier bound every learned value.
	MinMultiplier = 0.5
	MaxMultiplier = 2.0

	// GlobalWeatherKey is the learned correction applied on top of the
	// categorical weather multiplier from the signal adapter.
	GlobalWeatherKey = "global_correction"

	historyCap = 30
)

// defaults carry the hand-authored starting multipliers. An unknown
// (type, key) pair starts neutral.
var defaults = map[Type]map[string]float64{
	Holiday: {
		"public_holiday": 1.25,
		"easter":         0.85,
		"christmas_eve":  0.30,
		"christmas":      0.70,
		"new_years_eve":  0.80,
		"new_year":       1.15,
		"none":           1.0,
	},
	Weather: {
		GlobalWeatherKey: 1.0,
	},
	Season: {
		"winter": 1.15,
		"spring": 1.0,
		"summer": 0.85,
		"autumn": 1.10,
	},
	Payday: {
		"payday_window": 1.08,
		"pre_payday":    0.95,
		"none":          1.0,
	},
}

// DefaultValue returns the hand-authored default for a (type, key) pair,
// 1.0 when none is defined.
func DefaultValue(t Type, key string) float64 {
	if byKey, ok := defaults[t]; ok {
		if v, ok := byKey[key]; ok {
			return v
		}
	}
	return 1.0
}

// Adjustment is one learning step applied to a factor.
type Adjustment struct {
	Date       string  `json:"date"`
	From       float64 `json:"from"`
	To         float64 `json:"to"`
	Adjustment float64 `json:"adjustment"`
}

// Record is the persisted state of one factor multiplier.
type Record struct {
	Type        Type         `json:"type"`
	Key         string       `json:"key"`
	Value       float64      `json:"value"`
	Samples     int          `json:"samples"`
	Default     float64      `json:"default"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// Store reads and mutates factor records. Records are created lazily on
// first adjustment; a plain read of an untouched factor returns its
// default without writing anything.
type Store struct {
	backend store.Store
}

// NewStore wraps a versioned store backend.
func NewStore(backend store.Store) *Store {
	return &Store{backend: backend}
}

func recordKey(t Type, key string) string {
	return fmt.Sprintf("factors:%s:%s", t, key)
}

// Value returns the current multiplier for a factor, falling back to the
// default when nothing has been learned yet.
func (s *Store) Value(t Type, key string) float64 {
	rec, ok, err := s.Record(t, key)
	if err != nil || !ok {
		return DefaultValue(t, key)
	}
	return rec.Value
}

// Record fetches the persisted record for a factor, reporting whether one
// exists yet.
func (s *Store) Record(t Type, key string) (Record, bool, error) {
	var rec Record
	_, err := s.backend.Get(recordKey(t, key), &rec)
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Apply shifts a factor by delta, clamping to [MinMultiplier,
// MaxMultiplier], appending to the bounded adjustment history and
// incrementing the sample count. It returns the resulting record.
func (s *Store) Apply(t Type, key string, delta float64, date time.Time) (Record, error) {
	var result Record
	err := store.Update(s.backend, recordKey(t, key), func(rec *Record, found bool) error {
		if !found {
			def := DefaultValue(t, key)
			*rec = Record{Type: t, Key: key, Value: def, Default: def}
		}
		from := rec.Value
		rec.Value = clamp(rec.Value+delta, MinMultiplier, MaxMultiplier)
		rec.Samples++
		rec.Adjustments = append(rec.Adjustments, Adjustment{
			Date:       date.Format("2006-01-02"),
			From:       from,
			To:         rec.Value,
			Adjustment: rec.Value - from,
		})
		if len(rec.Adjustments) > historyCap {
			rec.Adjustments = rec.Adjustments[len(rec.Adjustments)-historyCap:]
		}
		result = *rec
		return nil
	})
	return result, err
}

// Reset restores a factor to its default, erasing samples and history.
// The only path that ever discards learned state.
func (s *Store) Reset(t Type, key string) error {
	return store.Update(s.backend, recordKey(t, key), func(rec *Record, _ bool) error {
		def := DefaultValue(t, key)
		*rec = Record{Type: t, Key: key, Value: def, Default: def}
		return nil
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

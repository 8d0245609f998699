// Package learning closes the loop between forecasts and observed
// attendance: a prediction ledger, a per-factor attribution learner, a
// per-hour bias learner and an adaptive ensemble weight tuner.
package learning

import (
	"errors"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/factors"
	"github.com/seatcast-dev/seatcast/pkg/store"
)

// FactorSnapshot pins the value of one factor at prediction time.
type FactorSnapshot struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Snapshot records every active factor a prediction was built from.
type Snapshot map[factors.Type]FactorSnapshot

// Entry is one ledger record per predicted date. Once Analyzed is set the
// entry is frozen: later writes must not touch actual or result, so one
// day can only ever contribute one learning signal.
type Entry struct {
	Date        string             `json:"date"`
	Factors     Snapshot           `json:"factors"`
	Predicted   int                `json:"predicted"`
	BaseValue   float64            `json:"base_value"`
	Actual      *int               `json:"actual,omitempty"`
	Analyzed    bool               `json:"analyzed"`
	Result      Status             `json:"result,omitempty"`
	Adjustments []FactorAdjustment `json:"adjustments,omitempty"`
}

// Ledger persists entries keyed by date.
type Ledger struct {
	backend store.Store
}

// NewLedger wraps a versioned store backend.
func NewLedger(backend store.Store) *Ledger {
	return &Ledger{backend: backend}
}

func ledgerKey(date time.Time) string {
	return "ledger:" + date.Format("2006-01-02")
}

// Entry fetches the ledger entry for a date.
func (l *Ledger) Entry(date time.Time) (Entry, bool, error) {
	var e Entry
	_, err := l.backend.Get(ledgerKey(date), &e)
	if errors.Is(err, store.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// RecordPrediction stores the prediction side of an entry. A frozen entry
// is left untouched; an unfrozen one keeps any recorded actual.
func (l *Ledger) RecordPrediction(date time.Time, snap Snapshot, predicted int, baseValue float64) error {
	return store.Update(l.backend, ledgerKey(date), func(e *Entry, found bool) error {
		if found && e.Analyzed {
			return nil // frozen
		}
		actual := e.Actual
		*e = Entry{
			Date:      date.Format("2006-01-02"),
			Factors:   snap,
			Predicted: predicted,
			BaseValue: baseValue,
			Actual:    actual,
		}
		return nil
	})
}

// RecordActual attaches the observed total to an entry. No-op when the
// entry is already frozen.
func (l *Ledger) RecordActual(date time.Time, actual int) error {
	return store.Update(l.backend, ledgerKey(date), func(e *Entry, found bool) error {
		if found && e.Analyzed {
			return nil
		}
		if !found {
			e.Date = date.Format("2006-01-02")
		}
		e.Actual = &actual
		return nil
	})
}

// freeze marks an entry analyzed with its result, keeping it immutable
// from then on.
func (l *Ledger) freeze(date time.Time, result Status, adjustments []FactorAdjustment) error {
	return store.Update(l.backend, ledgerKey(date), func(e *Entry, found bool) error {
		if found && e.Analyzed {
			return nil
		}
		e.Analyzed = true
		e.Result = result
		e.Adjustments = adjustments
		return nil
	})
}

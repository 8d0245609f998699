package learning

import (
	"log/slog"
	"math"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/store"
)

const (
	biasKey = "bias"

	BiasMin = 0.7
	BiasMax = 1.3

	biasSignificance = 0.10
	biasStep         = 0.15
)

// BiasEntry is the learned correction for one hour of the day.
type BiasEntry struct {
	Multiplier float64 `json:"multiplier"`
	Samples    int     `json:"samples"`
}

type biasRecord struct {
	Hours map[int]BiasEntry `json:"hours"`
}

// HourlyBias learns a systematic per-hour correction independent of the
// factor model: if hour 22 is consistently overpredicted, its multiplier
// drifts down regardless of which factors were active.
type HourlyBias struct {
	backend store.Store
	logger  *slog.Logger
}

// NewHourlyBias wraps a versioned store backend.
func NewHourlyBias(backend store.Store, logger *slog.Logger) *HourlyBias {
	return &HourlyBias{backend: backend, logger: logger}
}

// Multiplier returns the current bias for an hour, 1.0 when unlearned.
func (b *HourlyBias) Multiplier(hour int) float64 {
	var rec biasRecord
	if _, err := b.backend.Get(biasKey, &rec); err != nil {
		return 1.0
	}
	if e, ok := rec.Hours[hour]; ok {
		return e.Multiplier
	}
	return 1.0
}

// Learn updates the bias for every hour present in both maps. Returns the
// number of hours whose multiplier moved.
func (b *HourlyBias) Learn(date time.Time, predicted, actual map[int]int) (int, error) {
	changed := 0
	err := store.Update(b.backend, biasKey, func(rec *biasRecord, _ bool) error {
		if rec.Hours == nil {
			rec.Hours = make(map[int]BiasEntry)
		}
		changed = 0
		for hour, pred := range predicted {
			act, ok := actual[hour]
			if !ok {
				continue
			}
			errFrac := float64(pred-act) / math.Max(float64(act), 1)
			if math.Abs(errFrac) < biasSignificance {
				continue
			}

			entry, ok := rec.Hours[hour]
			if !ok {
				entry = BiasEntry{Multiplier: 1.0}
			}
			adjustment := -errFrac * biasStep
			dampening := 1.0 / (1.0 + float64(entry.Samples)*0.1)
			entry.Multiplier = clampBias(entry.Multiplier + adjustment*dampening)
			entry.Samples++
			rec.Hours[hour] = entry
			changed++

			b.logger.Debug("hourly bias updated",
				"date", date.Format("2006-01-02"), "hour", hour,
				"error", errFrac, "multiplier", entry.Multiplier)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func clampBias(v float64) float64 {
	if v < BiasMin {
		return BiasMin
	}
	if v > BiasMax {
		return BiasMax
	}
	return v
}

package learning

import (
	"log/slog"
	"math"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/store"
)

const (
	accuracyWindow = 30

	lowAccuracy     = 0.70
	lowMinSamples   = 5
	highAccuracy    = 0.85
	highMinSamples  = 10
	historicalCap   = 0.50
	historicalFloor = 0.25
	externalFloor   = 0.10
	genreCap        = 0.35
	coarseStep      = 0.02
	fineStep        = 0.01
)

// Weights are the four ensemble category weights. They always sum to 1.
type Weights struct {
	Historical float64 `json:"historical"`
	Genre      float64 `json:"genre"`
	Premiere   float64 `json:"premiere"`
	External   float64 `json:"external"`
}

// DefaultWeights is the hand-authored starting point per day type.
func DefaultWeights() Weights {
	return Weights{Historical: 0.45, Genre: 0.25, Premiere: 0.15, External: 0.15}
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Historical + w.Genre + w.Premiere + w.External
}

func (w Weights) normalized() Weights {
	sum := w.Sum()
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Historical: w.Historical / sum,
		Genre:      w.Genre / sum,
		Premiere:   w.Premiere / sum,
		External:   w.External / sum,
	}
}

// WeightsRecord is the persisted tuner state for one day type.
type WeightsRecord struct {
	Weights  Weights   `json:"weights"`
	Accuracy []float64 `json:"accuracy"`
	Samples  int       `json:"samples"`
}

// Tuner adjusts ensemble weights per day type from rolling accuracy: a
// struggling day type leans harder on history, a well-predicted one is
// allowed more genre influence.
type Tuner struct {
	backend store.Store
	logger  *slog.Logger
}

// NewTuner wraps a versioned store backend.
func NewTuner(backend store.Store, logger *slog.Logger) *Tuner {
	return &Tuner{backend: backend, logger: logger}
}

func weightsKey(dt calendar.DayType) string {
	return "weights:" + string(dt)
}

// Current returns the weights for a day type, defaults when untuned.
func (t *Tuner) Current(dt calendar.DayType) Weights {
	var rec WeightsRecord
	if _, err := t.backend.Get(weightsKey(dt), &rec); err != nil {
		return DefaultWeights()
	}
	if rec.Weights.Sum() == 0 {
		return DefaultWeights()
	}
	return rec.Weights
}

// Update folds one day's outcome into the rolling window and rebalances
// the weights. Returns the weights now in effect.
func (t *Tuner) Update(dt calendar.DayType, date time.Time, predictedTotal, actualTotal int) (Weights, error) {
	var result Weights
	err := store.Update(t.backend, weightsKey(dt), func(rec *WeightsRecord, found bool) error {
		if !found || rec.Weights.Sum() == 0 {
			rec.Weights = DefaultWeights()
		}

		accuracy := 1 - math.Abs(float64(predictedTotal-actualTotal))/math.Max(float64(predictedTotal), 1)
		if accuracy < 0 {
			accuracy = 0
		}
		rec.Accuracy = append(rec.Accuracy, accuracy)
		if len(rec.Accuracy) > accuracyWindow {
			rec.Accuracy = rec.Accuracy[len(rec.Accuracy)-accuracyWindow:]
		}
		rec.Samples++

		mean := 0.0
		for _, a := range rec.Accuracy {
			mean += a
		}
		mean /= float64(len(rec.Accuracy))

		w := rec.Weights
		switch {
		case mean < lowAccuracy && rec.Samples > lowMinSamples:
			w.Historical = math.Min(historicalCap, w.Historical+coarseStep)
			w.External = math.Max(externalFloor, w.External-coarseStep)
		case mean > highAccuracy && rec.Samples > highMinSamples:
			w.Historical = math.Max(historicalFloor, w.Historical-fineStep)
			w.Genre = math.Min(genreCap, w.Genre+fineStep)
		}
		rec.Weights = w.normalized()
		result = rec.Weights

		t.logger.Debug("ensemble weights updated",
			"day_type", dt, "date", date.Format("2006-01-02"),
			"accuracy", accuracy, "mean_accuracy", mean,
			"historical", result.Historical, "genre", result.Genre,
			"premiere", result.Premiere, "external", result.External)
		return nil
	})
	return result, err
}

package learning

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/factors"
)

// Status is the closed set of attribution outcomes. Every status except
// StatusActualMissing is terminal for its date.
type Status string

const (
	StatusNoPrediction       Status = "no_prediction"
	StatusActualMissing      Status = "actual_missing"
	StatusAlreadyAnalyzed    Status = "already_analyzed"
	StatusAccurate           Status = "accurate"
	StatusAdjusted           Status = "adjusted"
	StatusInsufficientSignal Status = "insufficient_attribution_signal"
)

const (
	// Errors at or below this fraction are treated as noise.
	significanceThreshold = 0.10

	// Factors with responsibility below the noise floor are not blamed.
	responsibilityFloor = 0.05
	minTotalImpact      = 0.01

	baseLearningRate  = 0.10
	baseMaxAdjustment = 0.15

	// Large misses adapt faster and are allowed bigger steps.
	largeErrorThreshold = 0.20
	maxRateBoost        = 4.0
	boostedMaxAdjust    = 0.35

	// Young factors move cautiously until they have this many samples.
	minSamples = 3
)

// FactorAdjustment documents one factor's share of a day's learning step.
type FactorAdjustment struct {
	Type           factors.Type `json:"type"`
	Key            string       `json:"key"`
	Responsibility float64      `json:"responsibility"`
	From           float64      `json:"from"`
	To             float64      `json:"to"`
	Adjustment     float64      `json:"adjustment"`
}

// AnalysisResult is the outcome of attributing one day's forecast error.
type AnalysisResult struct {
	Date        string             `json:"date"`
	Status      Status             `json:"status"`
	Predicted   int                `json:"predicted"`
	Actual      int                `json:"actual"`
	Error       float64            `json:"error"`
	Adjustments []FactorAdjustment `json:"adjustments,omitempty"`
}

// ReconstructFunc rebuilds a plausible prediction for a date that never
// got one: a factor snapshot from calendar rules (weather neutral) and a
// predicted total back-solved through the current baseline.
type ReconstructFunc func(date time.Time) (Snapshot, int, error)

// Attributor assigns responsibility for forecast error to the factors a
// prediction was built from and nudges their multipliers.
type Attributor struct {
	ledger      *Ledger
	factors     *factors.Store
	reconstruct ReconstructFunc
	logger      *slog.Logger
}

// NewAttributor wires an attribution learner. reconstruct may be nil, in
// which case dates without predictions terminate with StatusNoPrediction.
func NewAttributor(ledger *Ledger, fs *factors.Store, reconstruct ReconstructFunc, logger *slog.Logger) *Attributor {
	return &Attributor{ledger: ledger, factors: fs, reconstruct: reconstruct, logger: logger}
}

// Analyze runs the per-factor learning step for a date whose actual total
// has been recorded on the ledger.
func (a *Attributor) Analyze(date time.Time) (*AnalysisResult, error) {
	dateStr := date.Format("2006-01-02")
	entry, found, err := a.ledger.Entry(date)
	if err != nil {
		return nil, err
	}

	if found && entry.Analyzed {
		return &AnalysisResult{Date: dateStr, Status: StatusAlreadyAnalyzed}, nil
	}

	if !found || len(entry.Factors) == 0 {
		// No prediction was recorded for the date. Rebuild one from
		// calendar rules so the day's signal is not lost entirely.
		if a.reconstruct == nil {
			return &AnalysisResult{Date: dateStr, Status: StatusNoPrediction}, nil
		}
		snap, predicted, rerr := a.reconstruct(date)
		if rerr != nil {
			a.logger.Debug("retroactive reconstruction failed", "date", dateStr, "error", rerr)
			return &AnalysisResult{Date: dateStr, Status: StatusNoPrediction}, nil
		}
		combined := 1.0
		for _, fs := range snap {
			combined *= fs.Value
		}
		if err := a.ledger.RecordPrediction(date, snap, predicted, float64(predicted)/math.Max(0.1, combined)); err != nil {
			return nil, err
		}
		reloaded, ok, err := a.ledger.Entry(date)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &AnalysisResult{Date: dateStr, Status: StatusNoPrediction}, nil
		}
		entry = reloaded
	}

	if entry.Actual == nil {
		return &AnalysisResult{Date: dateStr, Status: StatusActualMissing}, nil
	}

	actual := *entry.Actual
	errFrac := float64(entry.Predicted-actual) / math.Max(float64(actual), 1)
	absError := math.Abs(errFrac)

	result := &AnalysisResult{
		Date:      dateStr,
		Predicted: entry.Predicted,
		Actual:    actual,
		Error:     errFrac,
	}

	if absError <= significanceThreshold {
		result.Status = StatusAccurate
		return result, a.ledger.freeze(date, StatusAccurate, nil)
	}

	type blamed struct {
		ftype          factors.Type
		key            string
		value          float64
		responsibility float64
	}
	var active []blamed
	var totalAbsImpact float64
	for ft, fs := range entry.Factors {
		totalAbsImpact += math.Abs(fs.Value - 1.0)
		active = append(active, blamed{ftype: ft, key: fs.Key, value: fs.Value})
	}
	if totalAbsImpact <= minTotalImpact {
		// Every factor sat at neutral: the error has nowhere to go.
		result.Status = StatusInsufficientSignal
		return result, a.ledger.freeze(date, StatusInsufficientSignal, nil)
	}
	for i := range active {
		active[i].responsibility = math.Abs(active[i].value-1.0) / totalAbsImpact
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].responsibility != active[j].responsibility {
			return active[i].responsibility > active[j].responsibility
		}
		return active[i].key < active[j].key // deterministic walk
	})

	// One global direction for the day: overprediction pushes every
	// blamed factor down, underprediction pushes every one up.
	direction := 1.0
	if errFrac > 0 {
		direction = -1.0
	}

	rate := baseLearningRate
	maxAdjust := baseMaxAdjustment
	if absError > largeErrorThreshold {
		rate *= math.Min(maxRateBoost, 1+(absError-largeErrorThreshold)*3)
		maxAdjust = boostedMaxAdjust
	}

	remaining := 1.0
	for _, b := range active {
		if b.responsibility < responsibilityFloor || remaining <= 0 {
			break
		}
		remaining -= b.responsibility

		samples := 0
		if rec, ok, err := a.factors.Record(b.ftype, b.key); err == nil && ok {
			samples = rec.Samples
		}
		confidence := math.Min(1, float64(samples+1)/minSamples)

		magnitude := math.Min(maxAdjust, absError*b.responsibility*rate*confidence)
		adjustment := magnitude * direction

		rec, err := a.factors.Apply(b.ftype, b.key, adjustment, date)
		if err != nil {
			return nil, err
		}
		// The snapshot value sets responsibility but may differ from the
		// store (the applied weather multiplier, or a factor that moved
		// since prediction time); From/To describe the store's own step.
		applied := rec.Adjustments[len(rec.Adjustments)-1]
		result.Adjustments = append(result.Adjustments, FactorAdjustment{
			Type:           b.ftype,
			Key:            b.key,
			Responsibility: b.responsibility,
			From:           applied.From,
			To:             applied.To,
			Adjustment:     applied.Adjustment,
		})
		a.logger.Debug("factor adjusted",
			"date", dateStr, "type", b.ftype, "key", b.key,
			"responsibility", b.responsibility, "adjustment", adjustment, "value", rec.Value)
	}

	if len(result.Adjustments) == 0 {
		result.Status = StatusInsufficientSignal
		return result, a.ledger.freeze(date, StatusInsufficientSignal, nil)
	}
	result.Status = StatusAdjusted
	return result, a.ledger.freeze(date, StatusAdjusted, result.Adjustments)
}

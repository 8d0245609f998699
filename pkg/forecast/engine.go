// Package forecast is the ensemble forecasting engine: it combines the
// robust historical baseline with calendar, weather, sports, premiere and
// learned bias multipliers, corrects in-flight days against partial
// actuals, and feeds completed days back into the learning subsystem.
package forecast

import (
	"log/slog"
	"math"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/attendance"
	"github.com/seatcast-dev/seatcast/pkg/baseline"
	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/factors"
	"github.com/seatcast-dev/seatcast/pkg/learning"
	"github.com/seatcast-dev/seatcast/pkg/signals"
	"github.com/seatcast-dev/seatcast/pkg/store"
)

const (
	// Per-hour multiplier stacking is bounded so a pile of small boosts
	// cannot run away.
	combinedMin = 0.6
	combinedMax = 1.4

	// snapshotHour is the representative hour captured into the ledger.
	snapshotHour = 20

	// minUsefulDays is the history depth below which the engine reports
	// how many more days it wants.
	minUsefulDays = 3
)

// Option configures an Engine.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	signalSource signals.Source
	logger       *slog.Logger
	now          func() time.Time
}

// WithSignals sets the external signal source (weather, sports).
func WithSignals(src signals.Source) Option {
	return func(o *OptionHolder) { o.signalSource = src }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OptionHolder) { o.logger = logger }
}

// WithClock overrides the time source. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(o *OptionHolder) { o.now = now }
}

// Engine is the forecasting core. All computation is synchronous; shared
// learning state lives behind the versioned store.
type Engine struct {
	history    *attendance.Index
	factors    *factors.Store
	ledger     *learning.Ledger
	bias       *learning.HourlyBias
	tuner      *learning.Tuner
	attributor *learning.Attributor
	signals    signals.Source
	logger     *slog.Logger
	now        func() time.Time
}

// New builds an Engine over a loaded history index and a state backend.
func New(history *attendance.Index, backend store.Store, opts ...Option) *Engine {
	holder := &OptionHolder{
		signalSource: signals.Neutral{},
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(holder)
	}

	fs := factors.NewStore(backend)
	ledger := learning.NewLedger(backend)
	e := &Engine{
		history: history,
		factors: fs,
		ledger:  ledger,
		bias:    learning.NewHourlyBias(backend, holder.logger),
		tuner:   learning.NewTuner(backend, holder.logger),
		signals: holder.signalSource,
		logger:  holder.logger,
		now:     holder.now,
	}
	e.attributor = learning.NewAttributor(ledger, fs, e.reconstruct, holder.logger)
	return e
}

// reconstruct rebuilds a plausible prediction for a date that never got
// one, from calendar rules alone. Weather defaults to neutral because
// historical weather is unavailable after the fact.
func (e *Engine) reconstruct(date time.Time) (learning.Snapshot, int, error) {
	dayType := calendar.Classify(date)
	samples, _ := e.history.SamplesFor(dayType)
	estimates, err := e.baselineFor(dayType, samples)
	if err != nil {
		return nil, 0, err
	}

	snap := e.calendarSnapshot(date)
	combined := 1.0
	for _, fs := range snap {
		combined *= fs.Value
	}
	combined = clampCombined(combined)

	baseTotal := 0
	for _, est := range estimates {
		baseTotal += est.PredictedOccupied
	}
	return snap, int(math.Round(float64(baseTotal) * combined)), nil
}

// calendarSnapshot captures the learned calendar factors for a date, with
// weather at its neutral learned correction.
func (e *Engine) calendarSnapshot(date time.Time) learning.Snapshot {
	holidayKey := calendar.HolidayKey(date)
	seasonKey := calendar.SeasonKey(date)
	paydayKey := calendar.PaydayKey(date)
	return learning.Snapshot{
		factors.Holiday: {Key: holidayKey, Value: e.factors.Value(factors.Holiday, holidayKey)},
		factors.Season:  {Key: seasonKey, Value: e.factors.Value(factors.Season, seasonKey)},
		factors.Payday:  {Key: paydayKey, Value: e.factors.Value(factors.Payday, paydayKey)},
		factors.Weather: {Key: factors.GlobalWeatherKey, Value: 1.0},
	}
}

// baselineFor wraps the estimator, translating an empty pool into the
// caller-facing insufficient-data error with a days-needed hint.
func (e *Engine) baselineFor(dayType calendar.DayType, samples []attendance.HistoryRecord) (map[int]baseline.HourEstimate, error) {
	estimates, err := baseline.Estimate(samples)
	if err != nil {
		needed := minUsefulDays - len(samples)
		if needed < 1 {
			needed = 1
		}
		return nil, &InsufficientDataError{DayType: dayType, DaysNeeded: needed}
	}
	return estimates, nil
}

func clampCombined(v float64) float64 {
	if v < combinedMin {
		return combinedMin
	}
	if v > combinedMax {
		return combinedMax
	}
	return v
}

package forecast

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/attendance"
	"github.com/seatcast-dev/seatcast/pkg/factors"
	"github.com/seatcast-dev/seatcast/pkg/signals"
	"github.com/seatcast-dev/seatcast/pkg/store"
)

// stubSignals answers fixed multipliers for every hour.
type stubSignals struct {
	weatherKey  string
	weatherMult float64
	sportsMult  float64
}

func (s stubSignals) WeatherForHour(context.Context, time.Time, int) (string, float64) {
	return s.weatherKey, s.weatherMult
}
func (s stubSignals) SportsMultiplier(context.Context, time.Time, int) float64 {
	if s.sportsMult == 0 {
		return 1.0
	}
	return s.sportsMult
}
func (s stubSignals) SportsEvents(context.Context, time.Time) []signals.Event { return nil }

// workdayHistory builds flat-weight history records on past Wednesdays
// with the given per-hour occupancy.
func workdayHistory(hours map[int]int, days int) []attendance.HistoryRecord {
	recs := make([]attendance.HistoryRecord, 0, days)
	// 2026-03-11 and the Wednesdays before it.
	base := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		h := make(map[int]attendance.HourCount, len(hours))
		for hour, occ := range hours {
			h[hour] = attendance.HourCount{Occupied: occ, Total: occ * 2, Screenings: 2}
		}
		recs = append(recs, attendance.HistoryRecord{
			Date:   base.AddDate(0, 0, -7*i),
			Weight: 1.0,
			Hours:  h,
		})
	}
	return recs
}

func seedFactor(t *testing.T, backend store.Store, ft factors.Type, key string, value float64) {
	t.Helper()
	rec := factors.Record{Type: ft, Key: key, Value: value, Default: factors.DefaultValue(ft, key)}
	if err := backend.Put("factors:"+string(ft)+":"+key, &rec, 0); err != nil {
		t.Fatal(err)
	}
}

// scenarioDate is a plain spring Wednesday: no holiday, no payday window,
// no school break, no long weekend, no trading ban.
var scenarioDate = time.Date(2026, time.March, 18, 0, 0, 0, 0, time.UTC)

// Baseline 100, holiday 1.0, weather 1.2, season 0.9, everything else
// neutral: combined is 1.08 (inside the cap) and the hour lands on 108.
func TestPredictScenarioMultiplierComposition(t *testing.T) {
	backend := store.NewMemory()
	seedFactor(t, backend, factors.Season, "spring", 0.9)
	idx := attendance.NewIndex(workdayHistory(map[int]int{20: 100}, 3))
	e := New(idx, backend,
		WithSignals(stubSignals{weatherKey: signals.WeatherRain, weatherMult: 1.2}),
		WithLogger(slog.Default()))

	pred, err := e.Predict(context.Background(), scenarioDate, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pred.Hours) != 1 {
		t.Fatalf("hours = %d, want 1", len(pred.Hours))
	}
	h20 := pred.Hours[0]
	if h20.Combined < 1.0799 || h20.Combined > 1.0801 {
		t.Errorf("combined = %v, want 1.08", h20.Combined)
	}
	if h20.PredictedOccupied != 108 {
		t.Errorf("adjusted = %d, want 108", h20.PredictedOccupied)
	}
	if pred.TotalOccupied != 108 {
		t.Errorf("total = %d, want 108", pred.TotalOccupied)
	}

	// The snapshot captures the factors behind the prediction; weather is
	// the multiplier applied at the representative hour.
	if got := pred.Factors[factors.Season]; got.Key != "spring" || got.Value != 0.9 {
		t.Errorf("season snapshot = %+v", got)
	}
	if got := pred.Factors[factors.Holiday]; got.Key != "none" || got.Value != 1.0 {
		t.Errorf("holiday snapshot = %+v", got)
	}
	if got := pred.Factors[factors.Weather]; got.Key != factors.GlobalWeatherKey || math.Abs(got.Value-1.2) > 1e-9 {
		t.Errorf("weather snapshot = %+v, want applied multiplier 1.2", got)
	}
}

func TestPredictCombinedMultiplierClamped(t *testing.T) {
	backend := store.NewMemory()
	idx := attendance.NewIndex(workdayHistory(map[int]int{20: 100}, 3))

	t.Run("upper cap", func(t *testing.T) {
		seedFactor(t, backend, factors.Season, "spring", 1.6)
		e := New(idx, backend, WithSignals(stubSignals{weatherKey: signals.WeatherRain, weatherMult: 1.3}))
		pred, err := e.Predict(context.Background(), scenarioDate, nil)
		if err != nil {
			t.Fatal(err)
		}
		for _, hp := range pred.Hours {
			if hp.Combined > 1.4 {
				t.Errorf("hour %d combined = %v, exceeds cap 1.4", hp.Hour, hp.Combined)
			}
		}
	})

	t.Run("lower cap", func(t *testing.T) {
		backend := store.NewMemory()
		seedFactor(t, backend, factors.Season, "spring", 0.5)
		e := New(idx, backend, WithSignals(stubSignals{weatherKey: signals.WeatherSunnyWarm, weatherMult: 0.7}))
		pred, err := e.Predict(context.Background(), scenarioDate, nil)
		if err != nil {
			t.Fatal(err)
		}
		for _, hp := range pred.Hours {
			if hp.Combined < 0.6 {
				t.Errorf("hour %d combined = %v, below floor 0.6", hp.Hour, hp.Combined)
			}
		}
	})
}

func TestPredictInsufficientData(t *testing.T) {
	e := New(attendance.NewIndex(nil), store.NewMemory())
	_, err := e.Predict(context.Background(), scenarioDate, nil)
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.DaysNeeded < 1 {
		t.Errorf("days needed hint = %d, want ≥ 1", ide.DaysNeeded)
	}
}

func TestPredictRecordsLedgerEntry(t *testing.T) {
	backend := store.NewMemory()
	idx := attendance.NewIndex(workdayHistory(map[int]int{19: 40, 20: 100}, 3))
	e := New(idx, backend)

	pred, err := e.Predict(context.Background(), scenarioDate, nil)
	if err != nil {
		t.Fatal(err)
	}

	entry, found, err := e.ledger.Entry(scenarioDate)
	if err != nil || !found {
		t.Fatalf("ledger entry missing: %v", err)
	}
	if entry.Predicted != pred.TotalOccupied {
		t.Errorf("ledger predicted = %d, want %d", entry.Predicted, pred.TotalOccupied)
	}
	if entry.BaseValue <= 0 {
		t.Errorf("base value = %v, want > 0", entry.BaseValue)
	}
	if len(entry.Factors) != 4 {
		t.Errorf("snapshot factors = %d, want 4", len(entry.Factors))
	}
}

func TestRealtimeCorrector(t *testing.T) {
	newEngine := func(t *testing.T) *Engine {
		t.Helper()
		idx := attendance.NewIndex(workdayHistory(map[int]int{18: 100, 20: 100, 22: 50}, 3))
		return New(idx, store.NewMemory())
	}

	t.Run("moderate divergence scales future hours only", func(t *testing.T) {
		e := newEngine(t)
		// Blind prediction for hour 18 is 100; actual 150 → divergence
		// 1.5 → factor 1.25 on hours 20 and 22 only.
		pred, err := e.Predict(context.Background(), scenarioDate, &PartialDay{
			CurrentHour: 18,
			Actuals:     map[int]int{18: 150},
		})
		if err != nil {
			t.Fatal(err)
		}
		if !pred.Corrected {
			t.Fatal("prediction should be marked corrected")
		}
		byHour := map[int]HourlyPrediction{}
		for _, hp := range pred.Hours {
			byHour[hp.Hour] = hp
		}
		if byHour[18].RealtimeFactor != 0 || byHour[18].PredictedOccupied != 100 {
			t.Errorf("current hour must not be rescaled: %+v", byHour[18])
		}
		if byHour[20].RealtimeFactor != 1.25 || byHour[20].PredictedOccupied != 125 {
			t.Errorf("hour 20 = %+v, want factor 1.25 → 125", byHour[20])
		}
		if byHour[22].PredictedOccupied != 63 { // round(50 × 1.25)
			t.Errorf("hour 22 = %d, want 63", byHour[22].PredictedOccupied)
		}
	})

	t.Run("divergence outside the trust window skips correction", func(t *testing.T) {
		e := newEngine(t)
		// Actual 250 vs predicted 100 → divergence 2.5: outside [0.5, 2].
		pred, err := e.Predict(context.Background(), scenarioDate, &PartialDay{
			CurrentHour: 18,
			Actuals:     map[int]int{18: 250},
		})
		if err != nil {
			t.Fatal(err)
		}
		if pred.Corrected {
			t.Error("correction must be skipped for divergence 2.5")
		}
		for _, hp := range pred.Hours {
			if hp.RealtimeFactor != 0 {
				t.Errorf("hour %d carries a correction factor: %+v", hp.Hour, hp)
			}
		}
	})

	t.Run("small divergence is left alone", func(t *testing.T) {
		e := newEngine(t)
		// 110 vs 100: 10% divergence, under the 15% threshold.
		pred, err := e.Predict(context.Background(), scenarioDate, &PartialDay{
			CurrentHour: 18,
			Actuals:     map[int]int{18: 110},
		})
		if err != nil {
			t.Fatal(err)
		}
		if pred.Corrected {
			t.Error("correction must not trigger under the threshold")
		}
	})

	t.Run("zero prediction is a no-op", func(t *testing.T) {
		e := newEngine(t)
		pred, err := e.Predict(context.Background(), scenarioDate, &PartialDay{
			CurrentHour: 15, // no baseline data at 15 → no hour entry
			Actuals:     map[int]int{15: 50},
		})
		if err != nil {
			t.Fatal(err)
		}
		if pred.Corrected {
			t.Error("missing hour must not trigger correction")
		}
	})
}

func TestPredictHourlyBiasFeedsBack(t *testing.T) {
	backend := store.NewMemory()
	idx := attendance.NewIndex(workdayHistory(map[int]int{20: 100}, 3))
	e := New(idx, backend)

	before, err := e.Predict(context.Background(), scenarioDate, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Teach the bias learner that hour 20 runs 30% hot.
	if _, err := e.bias.Learn(scenarioDate, map[int]int{20: 130}, map[int]int{20: 100}); err != nil {
		t.Fatal(err)
	}

	after, err := e.Predict(context.Background(), scenarioDate.AddDate(0, 0, 1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if after.Hours[0].PredictedOccupied >= before.Hours[0].PredictedOccupied {
		t.Errorf("bias did not feed back: %d vs %d",
			after.Hours[0].PredictedOccupied, before.Hours[0].PredictedOccupied)
	}
	if after.Hours[0].Multipliers["hourly_bias"] >= 1.0 {
		t.Errorf("hourly_bias multiplier = %v, want < 1.0", after.Hours[0].Multipliers["hourly_bias"])
	}
}

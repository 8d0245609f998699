package forecast

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/factors"
	"github.com/seatcast-dev/seatcast/pkg/learning"
)

const (
	// Realtime correction gates: a divergence outside [0.5, 2.0] means
	// the historical basis is unreliable and correcting would chase
	// noise; within the window, only divergences above the threshold
	// trigger a correction, at half strength.
	divergenceMin       = 0.5
	divergenceMax       = 2.0
	divergenceThreshold = 0.15
	correctionStrength  = 0.5
)

// Predict runs the ensemble pipeline for a target date. When partial
// same-day actuals are supplied the realtime corrector adjusts the
// remaining hours.
func (e *Engine) Predict(ctx context.Context, date time.Time, partial *PartialDay) (*Prediction, error) {
	dayType := calendar.Classify(date)
	samples, source := e.history.SamplesFor(dayType)
	estimates, err := e.baselineFor(dayType, samples)
	if err != nil {
		return nil, err
	}

	weights := e.tuner.Current(dayType)
	externalScale := weights.External / learning.DefaultWeights().External

	// Calendar factors are constant across the day.
	holidayKey := calendar.HolidayKey(date)
	holiday := e.factors.Value(factors.Holiday, holidayKey)
	seasonKey := calendar.SeasonKey(date)
	season := e.factors.Value(factors.Season, seasonKey)
	paydayKey := calendar.PaydayKey(date)
	payday := e.factors.Value(factors.Payday, paydayKey)
	school := calendar.SchoolHolidayMultiplier(date)
	longWeekend := calendar.LongWeekendMultiplier(date)
	firstWarm := calendar.FirstWarmWeekendMultiplier(date)
	tradingBan := calendar.TradingBanMultiplier(date)

	weatherCorrection := e.factors.Value(factors.Weather, factors.GlobalWeatherKey)

	pred := &Prediction{
		Date:          date.Format("2006-01-02"),
		DayType:       dayType,
		HistorySource: source,
		Weights:       weights,
	}

	snapshotTaken := false
	snapshotCombined := 1.0
	snapshotWeather := 1.0
	hours := make([]int, 0, len(estimates))
	for h := range estimates {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	for _, h := range hours {
		est := estimates[h]

		_, weatherSignal := e.signals.WeatherForHour(ctx, date, h)
		weather := scaleTowardNeutral(weatherSignal*weatherCorrection, externalScale)
		sports := scaleTowardNeutral(e.signals.SportsMultiplier(ctx, date, h), externalScale)
		hourBias := e.bias.Multiplier(h)

		combined := holiday * weather * school * sports * season * payday *
			longWeekend * firstWarm * tradingBan * hourBias
		combined = clampCombined(combined)

		hp := HourlyPrediction{
			Hour:              h,
			PredictedOccupied: int(math.Round(float64(est.PredictedOccupied) * combined)),
			PredictedTotal:    est.PredictedTotal,
			StdDev:            est.StdDev,
			DataPoints:        est.DataPoints,
			OutliersReplaced:  est.OutliersReplaced,
			Combined:          combined,
			Multipliers: map[string]float64{
				"holiday":        holiday,
				"weather":        weather,
				"school_holiday": school,
				"sports":         sports,
				"season":         season,
				"payday":         payday,
				"long_weekend":   longWeekend,
				"first_warm":     firstWarm,
				"trading_ban":    tradingBan,
				"hourly_bias":    hourBias,
			},
		}
		hp.Range.Min = int(math.Max(0, math.Round(float64(est.Range.Min)*combined)))
		hp.Range.Max = int(math.Round(float64(est.Range.Max) * combined))
		pred.Hours = append(pred.Hours, hp)
		pred.TotalOccupied += hp.PredictedOccupied

		// One representative hour feeds the ledger; prime time is the
		// most informative, so hour 20 wins when it has data.
		if !snapshotTaken || h == snapshotHour {
			snapshotTaken = true
			snapshotCombined = combined
			snapshotWeather = weather
		}
	}

	// The weather entry snapshots the multiplier actually applied at the
	// representative hour (signal × learned correction), so weather-driven
	// misses carry a non-neutral impact into attribution. Adjustments
	// still land on the global correction key.
	pred.Factors = learning.Snapshot{
		factors.Holiday: {Key: holidayKey, Value: holiday},
		factors.Season:  {Key: seasonKey, Value: season},
		factors.Payday:  {Key: paydayKey, Value: payday},
		factors.Weather: {Key: factors.GlobalWeatherKey, Value: snapshotWeather},
	}
	pred.BaseValue = float64(pred.TotalOccupied) / math.Max(0.1, snapshotCombined)

	if err := e.ledger.RecordPrediction(date, pred.Factors, pred.TotalOccupied, pred.BaseValue); err != nil {
		return nil, err
	}

	if partial != nil {
		e.applyRealtimeCorrection(pred, partial)
	}

	e.logger.Debug("prediction composed",
		"date", pred.Date, "day_type", dayType, "history_source", source,
		"total", pred.TotalOccupied, "corrected", pred.Corrected)
	return pred, nil
}

// applyRealtimeCorrection compares the current hour's actual against its
// adjusted prediction and rescales all strictly future hours.
func (e *Engine) applyRealtimeCorrection(pred *Prediction, partial *PartialDay) {
	actual, ok := partial.Actuals[partial.CurrentHour]
	if !ok {
		return
	}
	var current *HourlyPrediction
	for i := range pred.Hours {
		if pred.Hours[i].Hour == partial.CurrentHour {
			current = &pred.Hours[i]
			break
		}
	}
	if current == nil || current.PredictedOccupied == 0 {
		return
	}

	divergence := float64(actual) / float64(current.PredictedOccupied)
	if divergence < divergenceMin || divergence > divergenceMax {
		// The basis is too far off to trust a proportional fix.
		e.logger.Debug("realtime correction skipped",
			"date", pred.Date, "hour", partial.CurrentHour, "divergence", divergence)
		return
	}
	if math.Abs(divergence-1) <= divergenceThreshold {
		return
	}

	factor := 1 + (divergence-1)*correctionStrength
	total := 0
	for i := range pred.Hours {
		hp := &pred.Hours[i]
		if hp.Hour > partial.CurrentHour {
			hp.PredictedOccupied = int(math.Round(float64(hp.PredictedOccupied) * factor))
			hp.Range.Min = int(math.Max(0, math.Round(float64(hp.Range.Min)*factor)))
			hp.Range.Max = int(math.Round(float64(hp.Range.Max) * factor))
			hp.RealtimeFactor = factor
		}
		total += hp.PredictedOccupied
	}
	pred.TotalOccupied = total
	pred.Corrected = true

	e.logger.Debug("realtime correction applied",
		"date", pred.Date, "hour", partial.CurrentHour,
		"divergence", divergence, "factor", factor)
}

// scaleTowardNeutral rescales a multiplier's distance from 1.0. Used to
// let the adaptive external weight grow or shrink signal influence.
func scaleTowardNeutral(m, scale float64) float64 {
	return 1 + (m-1)*scale
}

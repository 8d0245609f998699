package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/calendar"
)

// Train folds a completed day back into the learning state: it runs a
// blind same-day prediction, attributes the error to the active factors,
// updates the per-hour bias and rebalances the ensemble weights.
func (e *Engine) Train(ctx context.Context, date time.Time, actual DayActuals) (*LearningUpdate, error) {
	dayType := calendar.Classify(date)

	total := actual.Total
	if total == 0 {
		for _, v := range actual.Hours {
			total += v
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("train %s: no actual attendance supplied", date.Format("2006-01-02"))
	}

	// Blind prediction: no partial actuals, so the realtime corrector
	// cannot leak the answer into the forecast being scored.
	predictedHours := map[int]int{}
	predictedTotal := 0
	blind, err := e.Predict(ctx, date, nil)
	switch {
	case err == nil:
		predictedTotal = blind.TotalOccupied
		for _, hp := range blind.Hours {
			predictedHours[hp.Hour] = hp.PredictedOccupied
		}
	case errors.As(err, new(*InsufficientDataError)):
		// Without a baseline there is still a signal worth keeping: the
		// attributor falls back to its retroactive path if it can.
		e.logger.Debug("training without blind prediction", "date", date.Format("2006-01-02"), "error", err)
	default:
		return nil, err
	}

	if err := e.ledger.RecordActual(date, total); err != nil {
		return nil, fmt.Errorf("recording actual: %w", err)
	}

	analysis, err := e.attributor.Analyze(date)
	if err != nil {
		return nil, fmt.Errorf("attributing error: %w", err)
	}

	biasChanged := 0
	if len(predictedHours) > 0 && len(actual.Hours) > 0 {
		biasChanged, err = e.bias.Learn(date, predictedHours, actual.Hours)
		if err != nil {
			return nil, fmt.Errorf("updating hourly bias: %w", err)
		}
	}

	weights := e.tuner.Current(dayType)
	if predictedTotal > 0 {
		weights, err = e.tuner.Update(dayType, date, predictedTotal, total)
		if err != nil {
			return nil, fmt.Errorf("tuning weights: %w", err)
		}
	}

	update := &LearningUpdate{
		Date:             date.Format("2006-01-02"),
		DayType:          dayType,
		Predicted:        predictedTotal,
		Actual:           total,
		Analysis:         analysis,
		BiasHoursChanged: biasChanged,
		Weights:          weights,
	}
	e.logger.Debug("training complete",
		"date", update.Date, "status", analysis.Status,
		"predicted", predictedTotal, "actual", total,
		"factors_adjusted", len(analysis.Adjustments), "bias_hours", biasChanged)
	return update, nil
}

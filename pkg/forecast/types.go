package forecast

import (
	"fmt"

	"github.com/seatcast-dev/seatcast/pkg/baseline"
	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/learning"
)

// HourlyPrediction is the forecast for one hour of the target day.
type HourlyPrediction struct {
	Hour              int                `json:"hour"`
	PredictedOccupied int                `json:"predicted_occupied"`
	PredictedTotal    int                `json:"predicted_total"`
	Range             baseline.Range     `json:"range"`
	StdDev            float64            `json:"stddev"`
	DataPoints        int                `json:"data_points"`
	OutliersReplaced  int                `json:"outliers_replaced"`
	Multipliers       map[string]float64 `json:"multipliers"`
	Combined          float64            `json:"combined"`
	RealtimeFactor    float64            `json:"realtime_factor,omitempty"`
}

// Prediction is the full forecast for a target date.
type Prediction struct {
	Date          string             `json:"date"`
	DayType       calendar.DayType   `json:"day_type"`
	HistorySource string             `json:"history_source"`
	Hours         []HourlyPrediction `json:"hours"`
	TotalOccupied int                `json:"total_occupied"`
	BaseValue     float64            `json:"base_value"`
	Factors       learning.Snapshot  `json:"factors"`
	Weights       learning.Weights   `json:"weights"`
	Corrected     bool               `json:"corrected"`
}

// PartialDay carries same-day observed attendance up to and including
// CurrentHour, enabling the realtime corrector.
type PartialDay struct {
	CurrentHour int         `json:"current_hour"`
	Actuals     map[int]int `json:"actuals"`
}

// DayActuals is the finalized outcome of a day, fed into Train.
type DayActuals struct {
	Hours map[int]int `json:"hours"`
	Total int         `json:"total"` // summed from Hours when zero
}

// LearningUpdate reports everything Train changed.
type LearningUpdate struct {
	Date             string                   `json:"date"`
	DayType          calendar.DayType         `json:"day_type"`
	Predicted        int                      `json:"predicted"`
	Actual           int                      `json:"actual"`
	Analysis         *learning.AnalysisResult `json:"analysis"`
	BiasHoursChanged int                      `json:"bias_hours_changed"`
	Weights          learning.Weights         `json:"weights"`
}

// ScreeningRequest asks for a single-screening occupancy forecast.
type ScreeningRequest struct {
	Hour            int              `json:"hour"`
	DayType         calendar.DayType `json:"day_type"`
	CurrentOccupied int              `json:"current_occupied"`
	TotalSeats      int              `json:"total_seats"`
	Movie           *MovieContext    `json:"movie,omitempty"`
}

// ScreeningPrediction is the per-screening forecast.
type ScreeningPrediction struct {
	Hour              int                `json:"hour"`
	PredictedOccupied int                `json:"predicted_occupied"`
	PredictedRate     float64            `json:"predicted_rate"`
	Multipliers       map[string]float64 `json:"multipliers"`
	Confidence        float64            `json:"confidence"`
}

// InsufficientDataError reports that even the pooled history could not
// support a baseline, with a hint at how many days are still needed.
type InsufficientDataError struct {
	DayType    calendar.DayType
	DaysNeeded int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("forecast: insufficient history for %s days (need at least %d more days of data)",
		e.DayType, e.DaysNeeded)
}

// Package render draws terminal views of forecasts: a per-hour bar chart
// for day predictions and compact summaries for screenings and training
// runs.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/seatcast-dev/seatcast/pkg/forecast"
)

const barWidth = 40

// DayForecast renders a full-day prediction as an hourly bar chart. The
// busiest hour is marked ^, realtime-corrected hours are marked ~.
func DayForecast(pred *forecast.Prediction) string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("🎬 Attendance Forecast — %s (%s", pred.Date, pred.DayType))
	if pred.HistorySource != "" && pred.HistorySource != string(pred.DayType) {
		out.WriteString(fmt.Sprintf(", history from %s days", pred.HistorySource))
	}
	out.WriteString(")\n")
	out.WriteString(strings.Repeat("─", 50) + "\n")

	maxOccupied := 0
	peakHour := -1
	for _, hp := range pred.Hours {
		if hp.PredictedOccupied > maxOccupied {
			maxOccupied = hp.PredictedOccupied
			peakHour = hp.Hour
		}
	}
	if maxOccupied == 0 {
		out.WriteString("No attendance expected.\n")
		return out.String()
	}

	grey := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	for _, hp := range pred.Hours {
		marker := "  "
		barColor := grey
		switch {
		case hp.RealtimeFactor != 0:
			marker = cyan.Sprint("~") + " "
			barColor = cyan
		case hp.Hour == peakHour:
			marker = yellow.Sprint("^") + " "
			barColor = yellow
		}

		length := hp.PredictedOccupied * barWidth / maxOccupied
		bar := strings.Repeat("█", length)
		if length == 0 {
			bar = "·"
		}

		out.WriteString(fmt.Sprintf("%02d:00 %s(%4d) %s  %d–%d\n",
			hp.Hour, marker, hp.PredictedOccupied, barColor.Sprint(bar),
			hp.Range.Min, hp.Range.Max))
	}

	out.WriteString(strings.Repeat("─", 50) + "\n")
	out.WriteString(fmt.Sprintf("Total: %d", pred.TotalOccupied))
	if pred.Corrected {
		out.WriteString(cyan.Sprint("  (realtime corrected)"))
	}
	out.WriteString("\n")
	out.WriteString(fmt.Sprintf("Weights: historical %.2f · genre %.2f · premiere %.2f · external %.2f\n",
		pred.Weights.Historical, pred.Weights.Genre, pred.Weights.Premiere, pred.Weights.External))
	return out.String()
}

// Screening renders a single-screening forecast with its multiplier
// breakdown.
func Screening(sp *forecast.ScreeningPrediction, totalSeats int) string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("🎟️  Screening at %02d:00 — %d/%d seats (%.0f%%)\n",
		sp.Hour, sp.PredictedOccupied, totalSeats, sp.PredictedRate*100))
	out.WriteString(fmt.Sprintf("Confidence: %.0f%%\n", sp.Confidence*100))

	names := make([]string, 0, len(sp.Multipliers))
	for name := range sp.Multipliers {
		names = append(names, name)
	}
	sort.Strings(names)

	grey := color.New(color.FgHiBlack)
	for _, name := range names {
		v := sp.Multipliers[name]
		line := fmt.Sprintf("  %-14s %.2f", name, v)
		if v == 1.0 {
			line = grey.Sprint(line)
		}
		out.WriteString(line + "\n")
	}
	return out.String()
}

// Learning renders the outcome of one training run.
func Learning(update *forecast.LearningUpdate) string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("📈 Training %s (%s)\n", update.Date, update.DayType))
	out.WriteString(strings.Repeat("─", 50) + "\n")
	out.WriteString(fmt.Sprintf("Predicted %d, actual %d — %s\n",
		update.Predicted, update.Actual, update.Analysis.Status))

	for _, adj := range update.Analysis.Adjustments {
		arrow := "↑"
		if adj.Adjustment < 0 {
			arrow = "↓"
		}
		out.WriteString(fmt.Sprintf("  %s %s/%s: %.3f → %.3f (responsibility %.0f%%)\n",
			arrow, adj.Type, adj.Key, adj.From, adj.To, adj.Responsibility*100))
	}
	if update.BiasHoursChanged > 0 {
		out.WriteString(fmt.Sprintf("  hourly bias moved for %d hour(s)\n", update.BiasHoursChanged))
	}
	out.WriteString(fmt.Sprintf("Weights: historical %.2f · genre %.2f · premiere %.2f · external %.2f\n",
		update.Weights.Historical, update.Weights.Genre, update.Weights.Premiere, update.Weights.External))
	return out.String()
}

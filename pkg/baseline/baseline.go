// Package baseline estimates a per-hour attendance baseline from weighted
// historical days, with outlier replacement and IQR filtering so a single
// blockbuster evening or a data glitch cannot drag the average.
package baseline

import (
	"errors"
	"math"
	"sort"

	"github.com/seatcast-dev/seatcast/pkg/attendance"
)

// ErrInsufficientData is returned when no historical days are available.
var ErrInsufficientData = errors.New("baseline: insufficient historical data")

const (
	// Hour values above hardOutlierCeiling are always outliers; values
	// above proportionValueFloor are outliers when they also carry more
	// than proportionCeiling of the day.
	hardOutlierCeiling   = 400
	proportionCeiling    = 0.35
	proportionValueFloor = 200

	// Hours above this value are excluded from the typical-proportion
	// pool; a day whose cleaned total is this small falls back to the
	// raw total.
	proportionPoolCeiling = 200
	cleanHourCeiling      = 300
	cleanTotalFloor       = 50

	defaultProportion = 0.08

	iqrMinPoints = 4
	iqrFence     = 1.5
)

// Range bounds an estimate.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// HourEstimate is the robust baseline for a single hour of the day.
type HourEstimate struct {
	Hour              int     `json:"hour"`
	PredictedOccupied int     `json:"predicted_occupied"`
	PredictedTotal    int     `json:"predicted_total"`
	Range             Range   `json:"range"`
	StdDev            float64 `json:"stddev"`
	DataPoints        int     `json:"data_points"`
	OutliersReplaced  int     `json:"outliers_replaced"`
}

// Estimate computes per-hour baselines from historical days that share a
// day type. Records carry recency weights; more recent days dominate.
func Estimate(records []attendance.HistoryRecord) (map[int]HourEstimate, error) {
	if len(records) == 0 {
		return nil, ErrInsufficientData
	}

	type dayView struct {
		rec        attendance.HistoryRecord
		dayTotal   int
		cleanTotal int
	}
	days := make([]dayView, 0, len(records))
	for _, rec := range records {
		dv := dayView{rec: rec}
		for h := attendance.OpenHour; h <= attendance.CloseHour; h++ {
			hc, ok := rec.Hours[h]
			if !ok {
				continue
			}
			dv.dayTotal += hc.Occupied
			if hc.Occupied <= cleanHourCeiling {
				dv.cleanTotal += hc.Occupied
			}
		}
		// A day where cleaning removed almost everything is a day the
		// cleaning cannot be trusted.
		if dv.cleanTotal <= cleanTotalFloor {
			dv.cleanTotal = dv.dayTotal
		}
		days = append(days, dv)
	}

	// Typical share of the day each hour carries, as the median across
	// days. Used to synthesize replacements for outlier hours.
	typical := make(map[int]float64)
	for h := attendance.OpenHour; h <= attendance.CloseHour; h++ {
		var pool []float64
		for _, dv := range days {
			hc, ok := dv.rec.Hours[h]
			if !ok || dv.cleanTotal == 0 {
				continue
			}
			if hc.Occupied <= proportionPoolCeiling {
				pool = append(pool, float64(hc.Occupied)/float64(dv.cleanTotal))
			}
		}
		if len(pool) == 0 {
			typical[h] = defaultProportion
		} else {
			typical[h] = median(pool)
		}
	}

	out := make(map[int]HourEstimate, attendance.CloseHour-attendance.OpenHour+1)
	for h := attendance.OpenHour; h <= attendance.CloseHour; h++ {
		type point struct {
			occupied float64
			total    float64
			weight   float64
		}
		var points []point
		replaced := 0

		for _, dv := range days {
			hc, ok := dv.rec.Hours[h]
			if !ok {
				continue
			}
			value := float64(hc.Occupied)
			if isOutlier(hc.Occupied, dv.dayTotal) {
				value = math.Round(float64(dv.cleanTotal) * typical[h])
				replaced++
			}
			points = append(points, point{
				occupied: value,
				total:    float64(hc.Total),
				weight:   dv.rec.Weight,
			})
		}
		if len(points) == 0 {
			continue
		}

		if len(points) >= iqrMinPoints {
			values := make([]float64, len(points))
			for i, p := range points {
				values[i] = p.occupied
			}
			lo, hi := iqrFences(values)
			kept := points[:0]
			for _, p := range points {
				if p.occupied >= lo && p.occupied <= hi {
					kept = append(kept, p)
				}
			}
			if len(kept) > 0 {
				points = kept
			}
		}

		var occSum, totSum, wSum float64
		for _, p := range points {
			occSum += p.occupied * p.weight
			totSum += p.total * p.weight
			wSum += p.weight
		}
		if wSum == 0 {
			continue
		}
		pred := occSum / wSum
		predTotal := totSum / wSum

		std := populationStdDev(points, func(p point) float64 { return p.occupied })
		if std < 2 || len(points) < 3 {
			std = math.Max(3, pred*0.15)
		}

		est := HourEstimate{
			Hour:              h,
			PredictedOccupied: int(math.Round(pred)),
			PredictedTotal:    int(math.Round(predTotal)),
			StdDev:            std,
			DataPoints:        len(points),
			OutliersReplaced:  replaced,
		}
		est.Range = Range{
			Min: int(math.Max(0, math.Round(pred-std))),
			Max: int(math.Round(pred + std)),
		}
		out[h] = est
	}

	if len(out) == 0 {
		return nil, ErrInsufficientData
	}
	return out, nil
}

func isOutlier(occupied, dayTotal int) bool {
	if occupied > hardOutlierCeiling {
		return true
	}
	if dayTotal <= 0 {
		return false
	}
	share := float64(occupied) / float64(dayTotal)
	return share > proportionCeiling && occupied > proportionValueFloor
}

// iqrFences returns the [Q1-1.5*IQR, Q3+1.5*IQR] acceptance window.
func iqrFences(values []float64) (lo, hi float64) {
	q1 := percentile(values, 0.25)
	q3 := percentile(values, 0.75)
	iqr := q3 - q1
	return q1 - iqrFence*iqr, q3 + iqrFence*iqr
}

// percentile picks by rank: sorted[floor(len*q)].
func percentile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func populationStdDev[T any](items []T, f func(T) float64) float64 {
	n := float64(len(items))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += f(it)
	}
	mean := sum / n
	var ss float64
	for _, it := range items {
		d := f(it) - mean
		ss += d * d
	}
	return math.Sqrt(ss / n)
}

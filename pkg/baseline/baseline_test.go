package baseline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/attendance"
)

// dayAt builds a uniform history day where hour 20 has the given value
// and every other hour carries a small background load.
func dayAt(dateStr string, hour20 int) attendance.HistoryRecord {
	d, _ := time.Parse("2006-01-02", dateStr)
	hours := make(map[int]attendance.HourCount)
	for h := attendance.OpenHour; h <= attendance.CloseHour; h++ {
		hours[h] = attendance.HourCount{Occupied: 20, Total: 100, Screenings: 2}
	}
	hours[20] = attendance.HourCount{Occupied: hour20, Total: 150, Screenings: 2}
	return attendance.HistoryRecord{Date: d, Weight: 1.0, Hours: hours}
}

func TestEstimateEmptyInput(t *testing.T) {
	if _, err := Estimate(nil); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestEstimateSimpleAverage(t *testing.T) {
	recs := []attendance.HistoryRecord{
		dayAt("2026-08-07", 60),
		dayAt("2026-08-14", 80),
		dayAt("2026-08-21", 100),
	}
	est, err := Estimate(recs)
	if err != nil {
		t.Fatal(err)
	}
	h20 := est[20]
	// Equal weights: plain mean of 60/80/100.
	if h20.PredictedOccupied != 80 {
		t.Errorf("hour 20 prediction = %d, want 80", h20.PredictedOccupied)
	}
	if h20.DataPoints != 3 || h20.OutliersReplaced != 0 {
		t.Errorf("points=%d replaced=%d", h20.DataPoints, h20.OutliersReplaced)
	}
	if h20.Range.Min > h20.PredictedOccupied || h20.Range.Max < h20.PredictedOccupied {
		t.Errorf("range %+v does not bracket prediction %d", h20.Range, h20.PredictedOccupied)
	}
}

func TestRecencyWeightingFavorsRecentDays(t *testing.T) {
	old := dayAt("2026-06-01", 40)
	old.Weight = 0.1
	fresh := dayAt("2026-08-21", 100)
	fresh.Weight = 1.0

	est, err := Estimate([]attendance.HistoryRecord{old, fresh})
	if err != nil {
		t.Fatal(err)
	}
	// Weighted mean = (40*0.1 + 100*1.0) / 1.1 ≈ 94.5
	if got := est[20].PredictedOccupied; got < 90 {
		t.Errorf("prediction = %d, want recent day to dominate (≥90)", got)
	}
}

// IQR filtering must drop the extreme point entirely, not merely cap it.
func TestIQRFilterDropsExtremePoint(t *testing.T) {
	values := []int{40, 45, 50, 48, 500}
	recs := make([]attendance.HistoryRecord, len(values))
	dates := []string{"2026-08-03", "2026-08-10", "2026-08-17", "2026-08-24", "2026-08-25"}
	for i, v := range values {
		recs[i] = dayAt(dates[i], v)
	}

	// Sorted values: 40 45 48 50 500 → Q1=45, Q3=50, upper fence 57.5.
	lo, hi := iqrFences([]float64{40, 45, 50, 48, 500})
	if math.Abs(lo-37.5) > 1e-9 || math.Abs(hi-57.5) > 1e-9 {
		t.Fatalf("fences = [%v, %v], want [37.5, 57.5]", lo, hi)
	}

	est, err := Estimate(recs)
	if err != nil {
		t.Fatal(err)
	}
	h20 := est[20]
	// 500 is also within outlier-replacement bounds (>400), so it gets
	// replaced by a proportional value before IQR even runs; either way
	// the mean must stay near the surviving cluster.
	if h20.PredictedOccupied > 60 {
		t.Errorf("prediction = %d, extreme point leaked into the mean", h20.PredictedOccupied)
	}
}

func TestOutlierReplacement(t *testing.T) {
	// Hour 20 carries 450 on one day: above the hard ceiling, replaced by
	// cleanTotal × typical proportion.
	recs := []attendance.HistoryRecord{
		dayAt("2026-08-07", 50),
		dayAt("2026-08-14", 55),
		dayAt("2026-08-21", 450),
	}
	est, err := Estimate(recs)
	if err != nil {
		t.Fatal(err)
	}
	h20 := est[20]
	if h20.OutliersReplaced != 1 {
		t.Errorf("outliers replaced = %d, want 1", h20.OutliersReplaced)
	}
	if h20.PredictedOccupied > 100 {
		t.Errorf("prediction = %d, replacement did not tame the outlier", h20.PredictedOccupied)
	}
}

func TestProportionalOutlierRule(t *testing.T) {
	// 250 occupants in one hour of a 600-person day is 42% of the day:
	// outlier by the proportional rule even though below the hard ceiling.
	if !isOutlier(250, 600) {
		t.Error("250/600 should be an outlier (share > 0.35 and value > 200)")
	}
	// Same share but small absolute value: kept.
	if isOutlier(40, 100) {
		t.Error("small values are never proportional outliers")
	}
	if !isOutlier(401, 0) {
		t.Error("values above the hard ceiling are always outliers")
	}
}

func TestStdDevFloor(t *testing.T) {
	// Two identical days → stddev 0 → floor kicks in.
	recs := []attendance.HistoryRecord{
		dayAt("2026-08-14", 100),
		dayAt("2026-08-21", 100),
	}
	est, err := Estimate(recs)
	if err != nil {
		t.Fatal(err)
	}
	h20 := est[20]
	want := math.Max(3, float64(h20.PredictedOccupied)*0.15)
	if math.Abs(h20.StdDev-want) > 1e-9 {
		t.Errorf("stddev = %v, want floor %v", h20.StdDev, want)
	}
	if h20.Range.Min < 0 {
		t.Errorf("range min %d must not be negative", h20.Range.Min)
	}
}

func TestMedianAndPercentile(t *testing.T) {
	if m := median([]float64{3, 1, 2}); m != 2 {
		t.Errorf("median odd = %v", m)
	}
	if m := median([]float64{4, 1, 2, 3}); m != 2.5 {
		t.Errorf("median even = %v", m)
	}
	if p := percentile([]float64{40, 45, 50, 48, 500}, 0.25); p != 45 {
		t.Errorf("p25 = %v, want 45", p)
	}
	if p := percentile([]float64{40, 45, 50, 48, 500}, 0.75); p != 50 {
		t.Errorf("p75 = %v, want 50", p)
	}
}

package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/seatcast-dev/seatcast/pkg/attendance"
	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/store"
)

func screeningEngine(t *testing.T, recs []attendance.HistoryRecord) *Engine {
	t.Helper()
	return New(attendance.NewIndex(recs), store.NewMemory(),
		WithClock(func() time.Time { return scenarioDate }))
}

func TestMatchGenrePatternOrder(t *testing.T) {
	// "family" is checked before "horror": a family-thriller hybrid
	// resolves to the family pattern. The order is a contract.
	p := matchGenrePattern([]string{"Thriller", "Family"})
	if p.name != "family" {
		t.Errorf("pattern = %q, want family (first match wins)", p.name)
	}
	if p := matchGenrePattern([]string{"Western"}); p.name != "default" {
		t.Errorf("unmatched genres = %q, want default", p.name)
	}
}

func TestPredictScreeningGenreTimeOfDay(t *testing.T) {
	e := screeningEngine(t, nil)

	morning, err := e.PredictScreening(context.Background(), ScreeningRequest{
		Hour: 11, DayType: calendar.Weekend, TotalSeats: 200,
		Movie: &MovieContext{Title: "Tiny Robots", Genres: []string{"Animation"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	late, err := e.PredictScreening(context.Background(), ScreeningRequest{
		Hour: 22, DayType: calendar.Weekend, TotalSeats: 200,
		Movie: &MovieContext{Title: "Tiny Robots", Genres: []string{"Animation"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if morning.PredictedOccupied <= late.PredictedOccupied {
		t.Errorf("weekend morning kids screening (%d) should beat late night (%d)",
			morning.PredictedOccupied, late.PredictedOccupied)
	}
	if morning.Multipliers["children"] <= 1.0 {
		t.Errorf("children multiplier = %v, want boost on weekend morning", morning.Multipliers["children"])
	}

	horror, err := e.PredictScreening(context.Background(), ScreeningRequest{
		Hour: 22, DayType: calendar.Weekend, TotalSeats: 200,
		Movie: &MovieContext{Title: "The Haunting", Genres: []string{"Horror"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if horror.Multipliers["genre_pattern"] <= 1.0 {
		t.Errorf("late horror genre multiplier = %v, want > 1.0", horror.Multipliers["genre_pattern"])
	}
	if horror.Multipliers["children"] != 1.0 {
		t.Errorf("horror must not get the children curve: %v", horror.Multipliers["children"])
	}
}

func TestPredictScreeningMovieHistory(t *testing.T) {
	// Three days of a title running at 90% occupancy: well above the
	// saturation threshold, full blend.
	hot := []attendance.HistoryRecord{}
	for i := 0; i < 3; i++ {
		hot = append(hot, attendance.HistoryRecord{
			Date:   scenarioDate.AddDate(0, 0, -1-i),
			Weight: 1.0,
			Hours:  map[int]attendance.HourCount{20: {Occupied: 90, Total: 100, Screenings: 1}},
			Titles: []attendance.TitleStats{
				{Title: "Sellout Hit", Genres: []string{"Drama"}, TotalOccupied: 90, TotalSeats: 100},
			},
		})
	}
	e := screeningEngine(t, hot)

	mult, days := e.movieHistoryMultiplier("Sellout Hit")
	if days != 3 {
		t.Fatalf("days = %d, want 3", days)
	}
	// 0.9/0.15 = 6 then saturation boost, clamped to 4.0; full blend
	// keeps the clamp value.
	if mult != movieHistoryMax {
		t.Errorf("multiplier = %v, want clamp at %v", mult, movieHistoryMax)
	}

	t.Run("thin samples blend toward neutral", func(t *testing.T) {
		one := hot[:1]
		e := screeningEngine(t, one)
		mult, days := e.movieHistoryMultiplier("Sellout Hit")
		if days != 1 {
			t.Fatalf("days = %d, want 1", days)
		}
		// blend = 1/3: only a third of the clamped ratio's excess.
		want := 1 + (movieHistoryMax-1)/3
		if mult < want-1e-9 || mult > want+1e-9 {
			t.Errorf("multiplier = %v, want %v", mult, want)
		}
	})

	t.Run("unknown title is neutral", func(t *testing.T) {
		mult, days := e.movieHistoryMultiplier("Never Screened")
		if mult != 1.0 || days != 0 {
			t.Errorf("got %v/%d, want 1.0/0", mult, days)
		}
	})
}

func TestPredictScreeningBounds(t *testing.T) {
	e := screeningEngine(t, nil)

	t.Run("sold seats are the floor", func(t *testing.T) {
		sp, err := e.PredictScreening(context.Background(), ScreeningRequest{
			Hour: 11, DayType: calendar.Workday, CurrentOccupied: 120, TotalSeats: 200,
			Movie: &MovieContext{Title: "Quiet Film", Genres: []string{"Western"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if sp.PredictedOccupied < 120 {
			t.Errorf("prediction %d below already-sold %d", sp.PredictedOccupied, 120)
		}
	})

	t.Run("capacity is the ceiling", func(t *testing.T) {
		hot := []attendance.HistoryRecord{{
			Date:   scenarioDate.AddDate(0, 0, -1),
			Weight: 1.0,
			Hours:  map[int]attendance.HourCount{20: {Occupied: 95, Total: 100}},
			Titles: []attendance.TitleStats{{Title: "Hit", TotalOccupied: 95, TotalSeats: 100}},
		}, {
			Date:   scenarioDate.AddDate(0, 0, -2),
			Weight: 1.0,
			Hours:  map[int]attendance.HourCount{20: {Occupied: 95, Total: 100}},
			Titles: []attendance.TitleStats{{Title: "Hit", TotalOccupied: 95, TotalSeats: 100}},
		}, {
			Date:   scenarioDate.AddDate(0, 0, -3),
			Weight: 1.0,
			Hours:  map[int]attendance.HourCount{20: {Occupied: 95, Total: 100}},
			Titles: []attendance.TitleStats{{Title: "Hit", TotalOccupied: 95, TotalSeats: 100}},
		}}
		e := screeningEngine(t, hot)
		sp, err := e.PredictScreening(context.Background(), ScreeningRequest{
			Hour: 20, DayType: calendar.Weekend, TotalSeats: 50,
			Movie: &MovieContext{Title: "Hit", Genres: []string{"Action"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if sp.PredictedOccupied > 50 {
			t.Errorf("prediction %d exceeds capacity 50", sp.PredictedOccupied)
		}
		if sp.PredictedRate > 1.0 {
			t.Errorf("rate = %v, want ≤ 1.0", sp.PredictedRate)
		}
	})

	t.Run("zero seats yields zero rate", func(t *testing.T) {
		sp, err := e.PredictScreening(context.Background(), ScreeningRequest{
			Hour: 20, DayType: calendar.Workday, TotalSeats: 0,
		})
		if err != nil {
			t.Fatal(err)
		}
		if sp.PredictedRate != 0 {
			t.Errorf("rate = %v, want 0", sp.PredictedRate)
		}
	})
}

func TestPredictScreeningPremiereDecay(t *testing.T) {
	e := screeningEngine(t, nil)
	opening := &MovieContext{
		Title:       "Star Wars: Legacy",
		Genres:      []string{"Sci-Fi"},
		ReleaseDate: scenarioDate.AddDate(0, 0, -1),
	}
	stale := &MovieContext{
		Title:       "Star Wars: Legacy",
		Genres:      []string{"Sci-Fi"},
		ReleaseDate: scenarioDate.AddDate(0, 0, -60),
	}

	fresh, err := e.PredictScreening(context.Background(), ScreeningRequest{
		Hour: 20, DayType: calendar.Weekend, TotalSeats: 300, Movie: opening,
	})
	if err != nil {
		t.Fatal(err)
	}
	old, err := e.PredictScreening(context.Background(), ScreeningRequest{
		Hour: 20, DayType: calendar.Weekend, TotalSeats: 300, Movie: stale,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Multipliers["premiere"] != 1.4 {
		t.Errorf("opening-weekend premiere multiplier = %v, want 1.4", fresh.Multipliers["premiere"])
	}
	// Fandom title 60 days out: 0.30^(60/14) is deep under the floor.
	if old.Multipliers["premiere"] != 0.15 {
		t.Errorf("stale premiere multiplier = %v, want floor 0.15", old.Multipliers["premiere"])
	}
	if fresh.PredictedOccupied <= old.PredictedOccupied {
		t.Errorf("fresh release (%d) should outdraw stale one (%d)",
			fresh.PredictedOccupied, old.PredictedOccupied)
	}
}

func TestHourPatternStaysNeutral(t *testing.T) {
	e := screeningEngine(t, nil)
	sp, err := e.PredictScreening(context.Background(), ScreeningRequest{
		Hour: 20, DayType: calendar.Workday, TotalSeats: 100,
		Movie: &MovieContext{Title: "Anything", Genres: []string{"Drama"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sp.Multipliers["hour_pattern"] != 1.0 {
		t.Errorf("hour_pattern = %v, must stay neutral", sp.Multipliers["hour_pattern"])
	}
}

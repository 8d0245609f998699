// Package main implements the seatcast CLI: day forecasts, per-screening
// forecasts and the training loop over finalized days.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/seatcast-dev/seatcast/pkg/attendance"
	"github.com/seatcast-dev/seatcast/pkg/calendar"
	"github.com/seatcast-dev/seatcast/pkg/config"
	"github.com/seatcast-dev/seatcast/pkg/forecast"
	"github.com/seatcast-dev/seatcast/pkg/render"
	"github.com/seatcast-dev/seatcast/pkg/signals"
	"github.com/seatcast-dev/seatcast/pkg/store"
)

const usage = `Usage: seatcast <command> [flags]

Commands:
  predict    forecast hourly attendance for a date
  screening  forecast occupancy for a single screening
  train      fold a finished day back into the learning state

Run "seatcast <command> -h" for command flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "predict":
		err = runPredict(os.Args[2:])
	case "screening":
		err = runScreening(os.Args[2:])
	case "train":
		err = runTrain(os.Args[2:])
	case "version":
		fmt.Println("seatcast v1.3.0")
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "seatcast: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	verbose    bool
	jsonOut    bool
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Config file path (or set SEATCAST_CONFIG)")
	fs.BoolVar(&cf.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&cf.jsonOut, "json", false, "Emit JSON instead of the terminal view")
	return cf
}

func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// buildEngine assembles the forecasting engine from configuration. The
// returned closer releases the state store.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*forecast.Engine, func() error, error) {
	idx, err := attendance.LoadDir(cfg.History.Dir, time.Now(), logger)
	if err != nil {
		return nil, nil, err
	}

	var backend store.Store
	if cfg.Store.InMemory {
		backend = store.NewMemory()
	} else {
		backend, err = store.OpenBadger(cfg.Store.Path, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []forecast.Option{forecast.WithLogger(logger)}
	if cfg.Signals.Enabled {
		weatherURL := fmt.Sprintf("%s?latitude=%v&longitude=%v&hourly=temperature_2m,weather_code&timezone=UTC",
			cfg.Signals.WeatherURL, cfg.Signals.Latitude, cfg.Signals.Longitude)
		opts = append(opts, forecast.WithSignals(signals.NewAdapter(weatherURL, cfg.Signals.SportsURL, logger)))
	}

	return forecast.New(idx, backend, opts...), backend.Close, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// parseHourCounts decodes "18=150,20=60" into a map.
func parseHourCounts(s string) (map[int]int, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[int]int)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("bad hour count %q: want HOUR=COUNT", pair)
		}
		hour, err := strconv.Atoi(k)
		if err != nil || hour < attendance.OpenHour || hour > attendance.CloseHour {
			return nil, fmt.Errorf("bad hour %q: want %d-%d", k, attendance.OpenHour, attendance.CloseHour)
		}
		count, err := strconv.Atoi(v)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("bad count %q for hour %d", v, hour)
		}
		out[hour] = count
	}
	return out, nil
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cf := registerCommon(fs)
	dateStr := fs.String("date", "", "Target date YYYY-MM-DD (default today)")
	hour := fs.Int("hour", -1, "Current hour for realtime correction")
	actualsStr := fs.String("actuals", "", "Observed counts so far, e.g. 18=150,19=90")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cf.verbose)

	date, err := parseDate(*dateStr)
	if err != nil {
		return err
	}
	actuals, err := parseHourCounts(*actualsStr)
	if err != nil {
		return err
	}
	var partial *forecast.PartialDay
	if *hour >= 0 {
		if len(actuals) == 0 {
			return fmt.Errorf("-hour requires -actuals")
		}
		partial = &forecast.PartialDay{CurrentHour: *hour, Actuals: actuals}
	}

	engine, closer, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer(); err != nil {
			logger.Error("closing state store", "error", err)
		}
	}()

	pred, err := engine.Predict(context.Background(), date, partial)
	if err != nil {
		return err
	}
	if cf.jsonOut {
		return emitJSON(pred)
	}
	fmt.Print(render.DayForecast(pred))
	return nil
}

func runScreening(args []string) error {
	fs := flag.NewFlagSet("screening", flag.ExitOnError)
	cf := registerCommon(fs)
	dateStr := fs.String("date", "", "Screening date YYYY-MM-DD (default today)")
	hour := fs.Int("hour", 20, "Screening start hour")
	seats := fs.Int("seats", 0, "Total seats in the auditorium")
	sold := fs.Int("sold", 0, "Seats already sold")
	title := fs.String("title", "", "Movie title")
	genres := fs.String("genres", "", "Comma-separated genres")
	director := fs.String("director", "", "Director name")
	country := fs.String("country", "", "Production country code, e.g. pl")
	imdb := fs.Float64("imdb", 0, "IMDB rating")
	releaseStr := fs.String("release", "", "Release date YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seats <= 0 {
		return fmt.Errorf("-seats must be positive")
	}

	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cf.verbose)

	date, err := parseDate(*dateStr)
	if err != nil {
		return err
	}

	req := forecast.ScreeningRequest{
		Hour:            *hour,
		DayType:         calendar.Classify(date),
		CurrentOccupied: *sold,
		TotalSeats:      *seats,
	}
	if *title != "" {
		movie := &forecast.MovieContext{
			Title:      *title,
			Director:   *director,
			Country:    *country,
			IMDBRating: *imdb,
		}
		for _, g := range strings.Split(*genres, ",") {
			if g = strings.TrimSpace(g); g != "" {
				movie.Genres = append(movie.Genres, g)
			}
		}
		if *releaseStr != "" {
			if movie.ReleaseDate, err = time.Parse("2006-01-02", *releaseStr); err != nil {
				return fmt.Errorf("bad release date %q: want YYYY-MM-DD", *releaseStr)
			}
		}
		req.Movie = movie
	}

	engine, closer, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer(); err != nil {
			logger.Error("closing state store", "error", err)
		}
	}()

	sp, err := engine.PredictScreening(context.Background(), req)
	if err != nil {
		return err
	}
	if cf.jsonOut {
		return emitJSON(sp)
	}
	fmt.Print(render.Screening(sp, *seats))
	return nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cf := registerCommon(fs)
	dateStr := fs.String("date", "", "Completed date YYYY-MM-DD")
	actualsStr := fs.String("actuals", "", "Final hourly counts, e.g. 18=150,20=210")
	total := fs.Int("total", 0, "Final day total (derived from -actuals when 0)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dateStr == "" {
		return fmt.Errorf("-date is required")
	}

	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cf.verbose)

	date, err := parseDate(*dateStr)
	if err != nil {
		return err
	}
	actuals, err := parseHourCounts(*actualsStr)
	if err != nil {
		return err
	}
	if len(actuals) == 0 && *total == 0 {
		return fmt.Errorf("-actuals or -total is required")
	}

	engine, closer, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer(); err != nil {
			logger.Error("closing state store", "error", err)
		}
	}()

	update, err := engine.Train(context.Background(), date, forecast.DayActuals{Hours: actuals, Total: *total})
	if err != nil {
		return err
	}
	if cf.jsonOut {
		return emitJSON(update)
	}
	fmt.Print(render.Learning(update))
	return nil
}

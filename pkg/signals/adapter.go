package signals

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/goccy/go-json"
	"github.com/maypok86/otter/v2"
)

const (
	weatherTTL  = time.Hour
	sportsTTL   = 24 * time.Hour
	fetchBudget = 5 * time.Second
)

// weatherDay is one cached day of hourly weather, keyed by hour.
type weatherDay struct {
	Categories map[int]string
}

// Adapter implements Source against live HTTP feeds. Responses are cached
// in-memory with per-feed TTLs; every failure path answers neutral.
type Adapter struct {
	weatherURL string
	sportsURL  string
	httpClient *http.Client
	logger     *slog.Logger

	weatherCache *otter.Cache[string, weatherDay]
	sportsCache  *otter.Cache[string, []Event]
}

// NewAdapter builds an Adapter for the given feed URLs. Either URL may be
// empty, in which case that signal stays neutral.
func NewAdapter(weatherURL, sportsURL string, logger *slog.Logger) *Adapter {
	return &Adapter{
		weatherURL: weatherURL,
		sportsURL:  sportsURL,
		httpClient: &http.Client{Timeout: fetchBudget},
		logger:     logger,
		weatherCache: otter.Must(&otter.Options[string, weatherDay]{
			MaximumSize:      256,
			ExpiryCalculator: otter.ExpiryWriting[string, weatherDay](weatherTTL),
		}),
		sportsCache: otter.Must(&otter.Options[string, []Event]{
			MaximumSize:      256,
			ExpiryCalculator: otter.ExpiryWriting[string, []Event](sportsTTL),
		}),
	}
}

// WeatherForHour returns the cached (or freshly fetched) weather category
// for one hour, neutral on any failure.
func (a *Adapter) WeatherForHour(ctx context.Context, date time.Time, hour int) (string, float64) {
	day, ok := a.weatherDay(ctx, date)
	if !ok {
		return WeatherUnknown, 1.0
	}
	key, ok := day.Categories[hour]
	if !ok {
		return WeatherUnknown, 1.0
	}
	return key, WeatherMultiplier(key)
}

// SportsMultiplier returns the hour's sports dampening factor.
func (a *Adapter) SportsMultiplier(ctx context.Context, date time.Time, hour int) float64 {
	return SportsHourMultiplier(a.SportsEvents(ctx, date), date, hour)
}

// SportsEvents lists the cached fixtures for a date; nil on failure.
func (a *Adapter) SportsEvents(ctx context.Context, date time.Time) []Event {
	if a.sportsURL == "" {
		return nil
	}
	cacheKey := date.Format("2006-01-02")
	if events, ok := a.sportsCache.GetIfPresent(cacheKey); ok {
		return events
	}

	var payload struct {
		Events []Event `json:"events"`
	}
	url := fmt.Sprintf("%s?date=%s", a.sportsURL, cacheKey)
	if err := a.fetchJSON(ctx, url, &payload); err != nil {
		a.logger.Debug("sports fetch degraded to neutral", "date", cacheKey, "error", err)
		return nil
	}
	a.sportsCache.Set(cacheKey, payload.Events)
	return payload.Events
}

func (a *Adapter) weatherDay(ctx context.Context, date time.Time) (weatherDay, bool) {
	if a.weatherURL == "" {
		return weatherDay{}, false
	}
	cacheKey := date.Format("2006-01-02")
	if day, ok := a.weatherCache.GetIfPresent(cacheKey); ok {
		return day, true
	}

	// Open-Meteo style payload: parallel hourly arrays.
	var payload struct {
		Hourly struct {
			Time        []string  `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
			WeatherCode []int     `json:"weather_code"`
		} `json:"hourly"`
	}
	url := fmt.Sprintf("%s&start_date=%s&end_date=%s", a.weatherURL, cacheKey, cacheKey)
	if err := a.fetchJSON(ctx, url, &payload); err != nil {
		a.logger.Debug("weather fetch degraded to neutral", "date", cacheKey, "error", err)
		return weatherDay{}, false
	}

	day := weatherDay{Categories: make(map[int]string)}
	for i, ts := range payload.Hourly.Time {
		if i >= len(payload.Hourly.Temperature) || i >= len(payload.Hourly.WeatherCode) {
			break
		}
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		day.Categories[t.Hour()] = ClassifyWeather(payload.Hourly.WeatherCode[i], payload.Hourly.Temperature[i])
	}
	if len(day.Categories) == 0 {
		a.logger.Debug("weather payload had no usable hours", "date", cacheKey)
		return weatherDay{}, false
	}
	a.weatherCache.Set(cacheKey, day)
	return day, true
}

// fetchJSON performs a GET with bounded retries and decodes the body.
func (a *Adapter) fetchJSON(ctx context.Context, url string, into any) error {
	ctx, cancel := context.WithTimeout(ctx, fetchBudget)
	defer cancel()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := a.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Debug("retrying signal fetch", "attempt", n+1, "url", url, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

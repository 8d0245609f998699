// Package config loads engine configuration from layered sources:
// built-in defaults, an optional YAML file, then SEATCAST_* environment
// variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file search when set.
const PathEnvVar = "SEATCAST_CONFIG"

// DefaultPaths is searched in order; the first existing file wins.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/seatcast/config.yaml",
}

// Config is the full engine configuration.
type Config struct {
	History HistoryConfig `koanf:"history"`
	Store   StoreConfig   `koanf:"store"`
	Signals SignalsConfig `koanf:"signals"`
	Logging LoggingConfig `koanf:"logging"`
}

// HistoryConfig locates the scraper's per-day attendance files.
type HistoryConfig struct {
	Dir string `koanf:"dir"`
}

// StoreConfig selects the learning-state backend.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// SignalsConfig configures the external weather and sports feeds. When
// disabled the engine runs on neutral signals.
type SignalsConfig struct {
	Enabled    bool    `koanf:"enabled"`
	WeatherURL string  `koanf:"weather_url"`
	SportsURL  string  `koanf:"sports_url"`
	Latitude   float64 `koanf:"latitude"`
	Longitude  float64 `koanf:"longitude"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		History: HistoryConfig{
			Dir: "./history",
		},
		Store: StoreConfig{
			Path:     "./data/seatcast",
			InMemory: false,
		},
		Signals: SignalsConfig{
			Enabled:    false,
			WeatherURL: "https://api.open-meteo.com/v1/forecast",
			SportsURL:  "",
			Latitude:   52.2297, // Warsaw
			Longitude:  21.0122,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envMappings translates SEATCAST_* variables to config paths. Unmapped
// variables are dropped so unrelated environment noise cannot leak in.
var envMappings = map[string]string{
	"seatcast_history_dir":     "history.dir",
	"seatcast_store_path":      "store.path",
	"seatcast_store_in_memory": "store.in_memory",
	"seatcast_signals_enabled": "signals.enabled",
	"seatcast_weather_url":     "signals.weather_url",
	"seatcast_sports_url":      "signals.sports_url",
	"seatcast_latitude":        "signals.latitude",
	"seatcast_longitude":       "signals.longitude",
	"seatcast_log_level":       "logging.level",
	"seatcast_log_format":      "logging.format",
}

// Load builds the configuration. An explicit path skips the default file
// search; an empty path falls back to PathEnvVar and DefaultPaths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("SEATCAST_", ".", func(key string) string {
		return envMappings[strings.ToLower(key)]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	if c.History.Dir == "" {
		return fmt.Errorf("history.dir must not be empty")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty unless store.in_memory is set")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: must be text or json", c.Logging.Format)
	}
	if c.Signals.Enabled {
		if c.Signals.WeatherURL == "" {
			return fmt.Errorf("signals.weather_url must not be empty when signals are enabled")
		}
		if c.Signals.Latitude < -90 || c.Signals.Latitude > 90 {
			return fmt.Errorf("signals.latitude %v out of range", c.Signals.Latitude)
		}
		if c.Signals.Longitude < -180 || c.Signals.Longitude > 180 {
			return fmt.Errorf("signals.longitude %v out of range", c.Signals.Longitude)
		}
	}
	return nil
}

// Package config handles loading, defaulting, and validation of the kiwibook
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/kiwibook/internal/registry"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Catalog  CatalogConfig  `toml:"catalog"  json:"catalog"`
	Registry RegistryConfig `toml:"registry" json:"registry"`
	Schedule ScheduleConfig `toml:"schedule" json:"schedule"`
	Airband  AirbandConfig  `toml:"airband"  json:"airband"`
	Streams  StreamsConfig  `toml:"streams"  json:"streams"`
	Servers  ServersConfig  `toml:"servers"  json:"servers"`
}

type DataConfig struct {
	Root string `toml:"root" json:"root"`
}

// LoggingConfig sets the lowest level that is logged: debug, info, warn or
// error. Empty means info.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

var levels = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Enabled reports whether a message at level passes the configured
// threshold. Messages with an unrecognised level always pass.
func (l LoggingConfig) Enabled(level string) bool {
	msg, ok := levels[level]
	if !ok {
		return true
	}
	min, ok := levels[l.Level]
	if !ok {
		min = levels["info"]
	}
	return msg >= min
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// CatalogConfig locates the receiver list. With URL set the list is fetched
// and cached under data.root; Path is then the last-resort copy.
type CatalogConfig struct {
	Path         string `toml:"path"          json:"path"`
	URL          string `toml:"url"           json:"url"`
	RefreshHours int    `toml:"refresh_hours" json:"refresh_hours"`
}

// RegistryConfig points at the headerless CSV tables. Empty paths are skipped.
type RegistryConfig struct {
	Regions  string `toml:"regions"  json:"regions"`
	Bands    string `toml:"bands"    json:"bands"`
	Stations string `toml:"stations" json:"stations"`
}

type ScheduleConfig struct {
	IntervalMinutes int `toml:"interval_minutes" json:"interval_minutes"`
}

// AirbandConfig drives the template job. It carries its own region list
// since airband frequencies differ from the shortwave regions table.
type AirbandConfig struct {
	Enabled     bool              `toml:"enabled"      json:"enabled"`
	Template    string            `toml:"template"     json:"template"`
	Output      string            `toml:"output"       json:"output"`
	FreqLow     int64             `toml:"freq_low"     json:"freq_low"`
	FreqHigh    int64             `toml:"freq_high"    json:"freq_high"`
	MinSNR      int               `toml:"min_snr"      json:"min_snr"`
	MaxResults  int               `toml:"max_results"  json:"max_results"`
	FallbackURL string            `toml:"fallback_url" json:"fallback_url"`
	Regions     []registry.Region `toml:"regions"      json:"regions"`
}

type StreamsConfig struct {
	Enabled    bool   `toml:"enabled"     json:"enabled"`
	Output     string `toml:"output"      json:"output"`
	MaxResults int    `toml:"max_results" json:"max_results"`
}

type ServersConfig struct {
	Enabled          bool   `toml:"enabled"           json:"enabled"`
	Output           string `toml:"output"            json:"output"`
	MinSNR           int    `toml:"min_snr"           json:"min_snr"`
	MaxResults       int    `toml:"max_results"       json:"max_results"`
	DefaultFrequency string `toml:"default_frequency" json:"default_frequency"`
}

func airbandRegion(name string, south, north, west, east float64, offset float64) registry.Region {
	return registry.Region{
		Name:      name,
		Box:       registry.Box{South: south, North: north, West: west, East: east},
		DayFreq:   121_500_000,
		NightFreq: 121_500_000,
		UTCOffset: offset,
	}
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "/var/lib/kiwibook",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Catalog: CatalogConfig{
			Path:         "/usr/local/src/dyatlov/kiwisdr_com.js",
			RefreshHours: 6,
		},
		Registry: RegistryConfig{
			Regions:  "/usr/local/src/kiwidata/regions",
			Bands:    "/usr/local/src/kiwidata/bands",
			Stations: "/usr/local/src/kiwidata/stations",
		},
		Schedule: ScheduleConfig{
			IntervalMinutes: 60,
		},
		Airband: AirbandConfig{
			Enabled:     true,
			Template:    "/usr/local/src/kiwidata/airband-template",
			Output:      "/usr/local/src/kiwidata/airband-bookmarks",
			FreqLow:     108_100_000,
			FreqHigh:    137_900_000,
			MinSNR:      1,
			MaxResults:  10,
			FallbackURL: "http://example.com:8073",
			Regions: []registry.Region{
				airbandRegion("Tokyo", 34.8, 36.9, 138.7, 141.0, 9),
				airbandRegion("Hokkaido", 41.1, 46.0, 138.0, 150.0, 9),
				airbandRegion("Moscow", 54.0, 58.0, 34.0, 45.0, 3),
				airbandRegion("Zurich", 46.0, 48.5, 6.0, 10.5, 1),
			},
		},
		Streams: StreamsConfig{
			Enabled:    true,
			Output:     "/usr/local/src/kiwidata/sdr-stream-bookmarks",
			MaxResults: 5,
		},
		Servers: ServersConfig{
			Enabled:          false,
			Output:           "/usr/local/src/kiwidata/kiwiservers",
			MinSNR:           19,
			MaxResults:       70,
			DefaultFrequency: "10000.00",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	// A file that lists regions replaces the default list rather than
	// extending it.
	regions := cfg.Airband.Regions
	cfg.Airband.Regions = nil
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if len(cfg.Airband.Regions) == 0 {
		cfg.Airband.Regions = regions
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the constraints a run depends on.
func Validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if _, ok := levels[cfg.Logging.Level]; !ok && cfg.Logging.Level != "" {
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	if cfg.Catalog.Path == "" && cfg.Catalog.URL == "" {
		return errors.New("catalog.path or catalog.url must be set")
	}
	if cfg.Catalog.RefreshHours < 1 {
		return errors.New("catalog.refresh_hours must be >= 1")
	}
	if cfg.Schedule.IntervalMinutes < 1 {
		return errors.New("schedule.interval_minutes must be >= 1")
	}
	if !cfg.Airband.Enabled && !cfg.Streams.Enabled && !cfg.Servers.Enabled {
		return errors.New("at least one of airband, streams, servers must be enabled")
	}

	if a := cfg.Airband; a.Enabled {
		if a.Template == "" || a.Output == "" {
			return errors.New("airband.template and airband.output must be set")
		}
		if a.FreqLow >= a.FreqHigh {
			return errors.New("airband.freq_low must be below airband.freq_high")
		}
		if a.MaxResults < 1 {
			return errors.New("airband.max_results must be >= 1")
		}
		if a.FallbackURL == "" {
			return errors.New("airband.fallback_url must not be empty")
		}
	}
	if s := cfg.Streams; s.Enabled {
		if s.Output == "" {
			return errors.New("streams.output must be set")
		}
		if cfg.Registry.Stations == "" {
			return errors.New("streams needs registry.stations")
		}
		if s.MaxResults < 1 {
			return errors.New("streams.max_results must be >= 1")
		}
	}
	if s := cfg.Servers; s.Enabled {
		if s.Output == "" {
			return errors.New("servers.output must be set")
		}
		if s.MaxResults < 1 {
			return errors.New("servers.max_results must be >= 1")
		}
	}
	return nil
}

// DefaultConfigDir is where kiwibookd looks for named config profiles.
func DefaultConfigDir() string {
	return "/etc/kiwibook"
}

// ProfilePath resolves a profile name to its TOML file in dir.
func ProfilePath(dir, profile string) string {
	return filepath.Join(dir, profile+".toml")
}

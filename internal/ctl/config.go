package ctl

import (
	"encoding/json"
	"strings"

	"github.com/large-farva/kiwibook/internal/config"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg config.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	printLine()
	printLine(header("  DAEMON CONFIGURATION"))
	printLine(rule(50))

	section := func(name string) {
		printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		printf("    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("root", cfg.Data.Root)

	section("logging")
	field("level", cfg.Logging.Level)

	section("server")
	field("bind", cfg.Server.Bind)

	section("catalog")
	field("path", cfg.Catalog.Path)
	field("url", cfg.Catalog.URL)
	field("refresh_hours", cfg.Catalog.RefreshHours)

	section("registry")
	field("regions", cfg.Registry.Regions)
	field("bands", cfg.Registry.Bands)
	field("stations", cfg.Registry.Stations)

	section("schedule")
	field("interval_minutes", cfg.Schedule.IntervalMinutes)

	section("airband")
	field("enabled", cfg.Airband.Enabled)
	if cfg.Airband.Enabled {
		field("template", cfg.Airband.Template)
		field("output", cfg.Airband.Output)
		field("range", formatMHz(cfg.Airband.FreqLow)+" - "+formatMHz(cfg.Airband.FreqHigh))
		field("min_snr", cfg.Airband.MinSNR)
		field("max_results", cfg.Airband.MaxResults)
		field("fallback_url", cfg.Airband.FallbackURL)
		names := make([]string, len(cfg.Airband.Regions))
		for i, r := range cfg.Airband.Regions {
			names[i] = r.Name
		}
		field("regions", strings.Join(names, ", "))
	}

	section("streams")
	field("enabled", cfg.Streams.Enabled)
	if cfg.Streams.Enabled {
		field("output", cfg.Streams.Output)
		field("max_results", cfg.Streams.MaxResults)
	}

	section("servers")
	field("enabled", cfg.Servers.Enabled)
	if cfg.Servers.Enabled {
		field("output", cfg.Servers.Output)
		field("min_snr", cfg.Servers.MinSNR)
		field("max_results", cfg.Servers.MaxResults)
		field("default_frequency", cfg.Servers.DefaultFrequency)
	}

	printLine()

	return nil
}

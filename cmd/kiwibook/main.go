// Kiwibook rebuilds the configured KiwiSDR bookmark files once and exits.
// It is the cron-friendly counterpart to kiwibookd and shares its config.
//
// With the select command it prints the ranked shortlist for one region and
// band instead of writing anything.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/jobs"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", config.ProfilePath(config.DefaultConfigDir(), "kiwibook"), "Path to config TOML")
		seed       = pflag.Uint64("seed", 0, "Fix the tie-break seed (0 = random)")
		dryRun     = pflag.Bool("dry-run", false, "Build bookmarks but do not write them")
		jsonOut    = pflag.Bool("json", false, "Print the run report as JSON")
		limit      = pflag.IntP("limit", "n", 10, "Shortlist length for select")
	)
	pflag.CommandLine.SetInterspersed(false)
	pflag.Usage = usage
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stderr, "kiwibook ", log.LstdFlags|log.Lmicroseconds)

	var engineOpts []selection.Option
	if *seed != 0 {
		engineOpts = append(engineOpts, selection.WithSource(rand.NewPCG(*seed, *seed)))
	}
	engine := selection.New(engineOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch pflag.Arg(0) {
	case "":
		err = runOnce(ctx, cfg, logger, engine, *dryRun, *jsonOut)
	case "select":
		if pflag.NArg() != 3 {
			usage()
			os.Exit(2)
		}
		err = shortlist(ctx, cfg, engine, pflag.Arg(1), pflag.Arg(2), *limit, *jsonOut)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("%v", err)
	}
}

func runOnce(ctx context.Context, cfg config.Config, logger *log.Logger, engine *selection.Engine, dryRun, jsonOut bool) error {
	r := jobs.New(cfg, logger, jobs.WithEngine(engine), jobs.WithDryRun(dryRun))
	rep, err := r.RunOnce(ctx)
	if jsonOut && rep != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

// shortlist prints the ranked receivers for one region and band, marking the
// one a run would pick.
func shortlist(ctx context.Context, cfg config.Config, engine *selection.Engine, regionName, bandName string, limit int, jsonOut bool) error {
	reg, err := registry.LoadFiles(cfg.Registry.Regions, cfg.Registry.Bands, "")
	if err != nil {
		return err
	}
	region, err := reg.Region(regionName)
	if err != nil {
		return fmt.Errorf("%w: %s", err, regionName)
	}
	band, ok := reg.Band(bandName)
	if !ok {
		return fmt.Errorf("unknown band: %s", bandName)
	}

	rx, err := catalog.NewStore(cfg.Catalog.URL, cfg.Catalog.Path, cfg.Data.Root, cfg.Catalog.RefreshHours).Fetch(ctx)
	if err != nil {
		return err
	}

	short := engine.Shortlist(rx, selection.ForBand(region, band, limit))
	urls := make([]string, len(short))
	for i, r := range short {
		urls[i] = r.URL
	}
	picked := engine.PickFrom(append([]string(nil), urls...)).Or(selection.FallbackURL)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"region":    region.Name,
			"band":      band.Name,
			"frequency": engine.FrequencyFor(region),
			"shortlist": urls,
			"pick":      picked,
		})
	}

	fmt.Printf("%s / %s: %d of %d receivers qualify, tuned to %.3f MHz\n",
		region.Name, band.Name, len(short), len(rx), float64(engine.FrequencyFor(region))/1e6)
	for i, r := range short {
		mark := " "
		if r.URL == picked {
			mark = "*"
		}
		fmt.Printf("%s %2d  snr %3d  %s  %s\n", mark, i+1, r.SNR.Value(catalog.MetricAll), r.URL, r.Name)
	}
	if len(short) == 0 {
		fmt.Printf("  none, falling back to %s\n", picked)
	}
	return nil
}

func usage() {
	fmt.Fprint(os.Stderr, `
  kiwibook - build KiwiSDR bookmark files once

  USAGE
    kiwibook [flags]                     run every enabled job and write its file
    kiwibook [flags] select REGION BAND  show the ranked shortlist for a query

  FLAGS
    -c, --config PATH   Config TOML (default: /etc/kiwibook/kiwibook.toml)
        --seed N        Fix the tie-break seed for reproducible picks
        --dry-run       Build bookmarks without writing them
        --json          Print the run report or shortlist as JSON
    -n, --limit N       Shortlist length for select (default: 10)

`)
}

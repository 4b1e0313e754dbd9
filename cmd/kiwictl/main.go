// Kiwictl is the command-line client for monitoring and controlling a
// running kiwibookd instance. It connects over HTTP and WebSocket to query
// status, inspect runs, and stream live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/kiwibook/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Kiwibook daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter selection,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --limit are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		healthFlags := pflag.NewFlagSet("health", pflag.ContinueOnError)
		detail := healthFlags.Bool("detail", false, "Show component checks")
		_ = healthFlags.Parse(subArgs)
		err = ctl.Health(*host, *detail, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "regions":
		err = ctl.Regions(*host, *jsonOut)

	case "catalog":
		opts := ctl.CatalogOptions{JSON: *jsonOut}
		catFlags := pflag.NewFlagSet("catalog", pflag.ContinueOnError)
		catFlags.IntVar(&opts.Limit, "limit", 10, "Number of receivers shown")
		catFlags.StringVar(&opts.Metric, "metric", "all", "Rank by SNR metric (all, hf)")
		_ = catFlags.Parse(subArgs)
		err = ctl.Catalog(*host, opts)

	case "report":
		err = ctl.Report(*host, *jsonOut)

	// ── Control commands ──────────────────────────────────────────
	case "run":
		err = ctl.Run(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "reload":
		opts := ctl.ReloadOptions{JSON: *jsonOut}
		reloadFlags := pflag.NewFlagSet("reload", pflag.ContinueOnError)
		reloadFlags.StringVar(&opts.Profile, "profile", "", "Switch to a named config profile")
		_ = reloadFlags.Parse(subArgs)
		err = ctl.Reload(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  kiwictl - kiwibook control CLI

  USAGE
    kiwictl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime, and the last run
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    regions         List airband regions and the region/band tables
    catalog         Show catalog freshness and the strongest receivers
    report          Show the last run's selections per job

  COMMANDS (control)
    run             Build and write bookmarks now
    pause           Pause scheduled runs
    resume          Resume scheduled runs
    reload          Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    health:
        --detail            Show component checks

    catalog:
        --limit N           Number of receivers shown (default: 10)
        --metric NAME       Rank by SNR metric: all or hf

    reload:
        --profile NAME      Switch to a named config profile

  EXAMPLES
    kiwictl status
    kiwictl --json report
    kiwictl --host http://192.168.8.1:8080 watch
    kiwictl catalog --limit 20 --metric hf
    kiwictl run
    kiwictl reload --profile home
    kiwictl watch --filter selection,run_completed

`)
}

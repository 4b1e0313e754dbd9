// Kiwibookd is the bookmark daemon. It rebuilds the configured KiwiSDR
// bookmark files on a schedule and serves status, control, and live events
// over HTTP and WebSocket. Shutdown is handled gracefully on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/kiwibook/internal/app"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/jobs"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", config.ProfilePath(config.DefaultConfigDir(), "kiwibook"), "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (default: server.bind from config)")
		dryRun     = pflag.Bool("dry-run", false, "Build bookmarks but never write them")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stdout, "kiwibookd ", log.LstdFlags|log.Lmicroseconds)

	a, err := app.New(app.Options{
		Logger:        logger,
		Cfg:           cfg,
		ConfigPath:    *configPath,
		Bind:          *bind,
		RunnerOptions: []jobs.Option{jobs.WithDryRun(*dryRun)},
	})
	if err != nil {
		logger.Fatalf("kiwibookd init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("kiwibookd failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/kiwibook/internal/bookmark"
	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/metrics"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
	"github.com/large-farva/kiwibook/internal/telemetry"
)

// Runner states reported through the setState callback of Run.
const (
	StateIdle    = "IDLE"
	StateRunning = "RUNNING"
	StatePaused  = "PAUSED"
)

const component = "runner"

// pausedWait bounds a paused sleep; any command ends it early.
const pausedWait = 24 * time.Hour

// Publisher receives telemetry events. *ws.Hub satisfies it.
type Publisher interface {
	Publish(v any)
}

// Command is an external request handled by the Run loop. Reply receives
// exactly one result.
type Command struct {
	Type   string
	Config *config.Config // for "reload"
	Reply  chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Runner builds and writes bookmark files, once or on a schedule.
type Runner struct {
	Log *log.Logger

	// Commands receives external commands. The loop checks it while
	// waiting between runs.
	Commands chan Command

	cfgMu sync.RWMutex
	cfg   config.Config

	engine  *selection.Engine
	pub     Publisher
	metrics *metrics.Collector
	dryRun  bool

	runMu  sync.Mutex
	paused atomic.Bool
	runNow bool

	lastMu sync.RWMutex
	last   *Report
}

// Option configures a Runner.
type Option func(*Runner)

// WithEngine replaces the selection engine, e.g. with a seeded one.
func WithEngine(e *selection.Engine) Option {
	return func(r *Runner) { r.engine = e }
}

// WithPublisher sends run telemetry to p.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.pub = p }
}

// WithMetrics records run metrics in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithDryRun builds artifacts without writing them.
func WithDryRun(dry bool) Option {
	return func(r *Runner) { r.dryRun = dry }
}

// New creates a runner for cfg.
func New(cfg config.Config, logger *log.Logger, opts ...Option) *Runner {
	r := &Runner{
		Log:      logger,
		Commands: make(chan Command, 4),
		cfg:      cfg,
		engine:   selection.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the configuration the next run will use.
func (r *Runner) Config() config.Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg
}

// SetConfig replaces the configuration for subsequent runs.
func (r *Runner) SetConfig(cfg config.Config) {
	r.cfgMu.Lock()
	r.cfg = cfg
	r.cfgMu.Unlock()
}

// IsPaused reports whether scheduled runs are suspended.
func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// LastReport returns the most recent run report, or nil before the first run.
func (r *Runner) LastReport() *Report {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last
}

type artifact struct {
	job  Job
	data string
}

// RunOnce performs a full run: load the catalog and tables, build every
// enabled job in memory, then write the results. Nothing is written unless
// every job built successfully.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	cfg := r.Config()
	js := FromConfig(cfg)
	rep := &Report{ID: uuid.NewString(), Started: time.Now().UTC(), DryRun: r.dryRun}

	r.publish(telemetry.RunStarted{
		Event: telemetry.NewEvent(telemetry.EventRunStarted, component),
		RunID: rep.ID,
		Jobs:  Names(js),
	})

	err := r.run(ctx, cfg, js, rep)

	rep.Finished = time.Now().UTC()
	if err != nil {
		rep.Error = err.Error()
		r.logf("error", "run %s failed: %v", rep.ID, err)
	} else {
		counts := rep.Counts()
		r.logf("info", "run %s done in %s: %d found, %d fallback, %d skipped",
			rep.ID, rep.Duration().Truncate(time.Millisecond),
			counts[metrics.ResultFound], counts[metrics.ResultFallback], counts[metrics.ResultSkipped])
	}

	r.metrics.ObserveRun(err == nil, rep.Duration())
	counts := rep.Counts()
	r.publish(telemetry.RunCompleted{
		Event:      telemetry.NewEvent(telemetry.EventRunCompleted, component),
		RunID:      rep.ID,
		OK:         err == nil,
		Selections: counts[metrics.ResultFound],
		Fallbacks:  counts[metrics.ResultFallback],
		DurationS:  rep.Duration().Seconds(),
		Error:      rep.Error,
	})

	r.lastMu.Lock()
	r.last = rep
	r.lastMu.Unlock()

	return rep, err
}

func (r *Runner) run(ctx context.Context, cfg config.Config, js []Job, rep *Report) error {
	if len(js) == 0 {
		return errors.New("no jobs enabled")
	}

	store := catalog.NewStore(cfg.Catalog.URL, cfg.Catalog.Path, cfg.Data.Root, cfg.Catalog.RefreshHours)
	rx, err := store.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	rep.Receivers = len(rx)
	r.metrics.SetReceivers(len(rx))

	reg := &registry.Registry{}
	for _, j := range js {
		if j.NeedsRegistry() {
			reg, err = registry.LoadFiles(cfg.Registry.Regions, cfg.Registry.Bands, cfg.Registry.Stations)
			if err != nil {
				return fmt.Errorf("registry: %w", err)
			}
			break
		}
	}

	in := Input{Receivers: rx, Registry: reg, Engine: r.engine}
	arts := make([]artifact, 0, len(js))
	for _, j := range js {
		data, sels, err := j.Build(ctx, in)
		if err != nil {
			return fmt.Errorf("%s: %w", j.Name(), err)
		}
		arts = append(arts, artifact{job: j, data: data})
		rep.Jobs = append(rep.Jobs, JobReport{
			Job:        j.Name(),
			Output:     j.Output(),
			Bytes:      len(data),
			Selections: sels,
		})
		for _, s := range sels {
			r.logf("debug", "%s %s: %s %s (%d candidates)", j.Name(), s.Target, s.Result, s.URL, s.Shortlist)
			r.metrics.ObserveSelection(j.Name(), s.Result)
			r.publish(telemetry.Selection{
				Event:     telemetry.NewEvent(telemetry.EventSelection, component),
				RunID:     rep.ID,
				Job:       j.Name(),
				Target:    s.Target,
				URL:       s.URL,
				Found:     s.Found(),
				Shortlist: s.Shortlist,
			})
		}
	}

	if r.dryRun {
		return nil
	}
	for i, a := range arts {
		if err := bookmark.WriteFile(a.job.Output(), a.data); err != nil {
			return fmt.Errorf("%s: %w", a.job.Name(), err)
		}
		rep.Jobs[i].Written = true
	}
	return nil
}

// Run is the daemon loop. It runs immediately, then every
// schedule.interval_minutes, until ctx is cancelled. Commands arriving
// between runs are handled inline:
//
//	run    - start a run now, even while paused
//	pause  - suspend scheduled runs
//	resume - resume; a run that came due while paused starts at once
//	reload - swap in a new configuration
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	state := ""
	set := func(s string) {
		if s != state {
			state = s
			setState(s)
		}
	}

	r.logf("info", "runner started, interval %s", r.interval())
	next := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		due := !r.paused.Load() && !time.Now().Before(next)
		if due || r.runNow {
			r.runNow = false
			set(StateRunning)
			// Failures are logged and reported; the schedule continues.
			_, _ = r.RunOnce(ctx)
			next = time.Now().Add(r.interval())
			if ctx.Err() != nil {
				return
			}
		}

		wait := time.Until(next)
		if r.paused.Load() {
			set(StatePaused)
			wait = pausedWait
		} else {
			set(StateIdle)
		}
		if !r.sleepOrCommand(ctx, wait) {
			return
		}
	}
}

func (r *Runner) interval() time.Duration {
	return time.Duration(r.Config().Schedule.IntervalMinutes) * time.Minute
}

// sleepOrCommand blocks for d, until ctx is cancelled, or until a command
// arrives. It returns false only when ctx was cancelled.
func (r *Runner) sleepOrCommand(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case cmd := <-r.Commands:
		r.handleCommand(cmd)
		return true
	}
}

func (r *Runner) handleCommand(cmd Command) {
	var res CommandResult
	switch cmd.Type {
	case "run":
		r.runNow = true
		res = CommandResult{OK: true, Message: "run started"}
	case "pause":
		if r.paused.Swap(true) {
			res = CommandResult{OK: true, Message: "runner already paused"}
		} else {
			r.logf("info", "runner paused by user")
			res = CommandResult{OK: true, Message: "runner paused"}
		}
	case "resume":
		if !r.paused.Swap(false) {
			res = CommandResult{OK: true, Message: "runner already running"}
		} else {
			r.logf("info", "runner resumed by user")
			res = CommandResult{OK: true, Message: "runner resumed"}
		}
	case "reload":
		if cmd.Config == nil {
			res = CommandResult{OK: false, Error: "reload without configuration"}
			break
		}
		r.SetConfig(*cmd.Config)
		r.logf("info", "configuration reloaded")
		res = CommandResult{OK: true, Message: "configuration reloaded"}
	default:
		res = CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
	if cmd.Reply != nil {
		cmd.Reply <- res
	}
}

// logf logs and publishes a message unless logging.level filters it out.
func (r *Runner) logf(level, format string, args ...any) {
	if !r.Config().Logging.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if r.Log != nil {
		r.Log.Print(msg)
	}
	r.publish(telemetry.Log(component, level, msg))
}

func (r *Runner) publish(v any) {
	if r.pub != nil {
		r.pub.Publish(v)
	}
}

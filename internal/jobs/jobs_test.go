package jobs

import (
	"bytes"
	"context"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/metrics"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
	"github.com/large-farva/kiwibook/internal/telemetry"
)

const catalogJSON = `var kiwisdr_com = [
{"name": "JP air", "loc": "Tokyo, Japan", "url": "http://jp-air.example:8073", "snr": "30,25",
 "bands": "100000-150000000", "gps": "(35.60, 139.70)", "users": "0", "users_max": "4"},
{"name": "JP HF", "loc": "Tokyo West", "url": "http://jp-hf.example:8073", "snr": "25,22",
 "bands": "0-30000000", "gps": "(35.70, 139.80)", "users": "1", "users_max": "4"},
{"name": "CH", "loc": "Zurich", "url": "http://ch.example:8073", "snr": "40,12",
 "bands": "0-30000000", "gps": "(47.30, 8.50)", "users": "4", "users_max": "4"},
{"name": "UK", "loc": "London", "url": "http://uk.example:8073", "snr": "10,5",
 "bands": "0-30000000", "gps": "(51.50, -0.10)", "users": "0", "users_max": "4"},
];
`

const template = `<a href="Tokyo?f=121500am">Tokyo</a>
<a href="Zurich?f=118100am">Zurich</a>
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// fixture lays out a catalog, CSV tables, and a template in a temp dir and
// returns a config with all three jobs pointed at it.
func fixture(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Data.Root = dir
	cfg.Catalog.Path = writeFile(t, dir, "kiwisdr_com.js", catalogJSON)
	cfg.Registry.Regions = writeFile(t, dir, "regions", "Japan,34.0,37.0,138.0,141.0,9595000,6000000,9\n")
	cfg.Registry.Bands = writeFile(t, dir, "bands", "31m,15,9400000,9900000\n49m,15,5900000,6200000\n")
	cfg.Registry.Stations = writeFile(t, dir, "stations", strings.Join([]string{
		"NHK World,Japan,,9595,am,kiwi",
		"Nowhere,Atlantis,,9595,am,kiwi",
		"Out of band,Japan,,15000,am,kiwi",
		"BBC WS,Europe,http://websdr.example:8901/,6195,am,web",
		"Mystery,Europe,http://x.example/,6195,am,sdrplay",
	}, "\n")+"\n")

	cfg.Airband.Template = writeFile(t, dir, "airband-template", template)
	cfg.Airband.Output = filepath.Join(dir, "airband-bookmarks")
	cfg.Airband.Regions = []registry.Region{
		{Name: "Tokyo", Box: registry.Box{South: 34.8, North: 36.9, West: 138.7, East: 141.0}, DayFreq: 121_500_000, NightFreq: 121_500_000, UTCOffset: 9},
		{Name: "Zurich", Box: registry.Box{South: 46.0, North: 48.5, West: 6.0, East: 10.5}, DayFreq: 118_100_000, NightFreq: 118_100_000, UTCOffset: 1},
	}
	cfg.Streams.Output = filepath.Join(dir, "sdr-stream-bookmarks")
	cfg.Servers.Enabled = true
	cfg.Servers.Output = filepath.Join(dir, "kiwiservers")
	return cfg
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func newRunner(cfg config.Config, opts ...Option) *Runner {
	opts = append([]Option{WithEngine(selection.New(selection.WithSource(rand.NewPCG(1, 2))))}, opts...)
	return New(cfg, log.New(&bytes.Buffer{}, "", 0), opts...)
}

func TestRunOnceWritesAllArtifacts(t *testing.T) {
	cfg := fixture(t)

	rep, err := newRunner(cfg).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, 4, rep.Receivers)
	require.Len(t, rep.Jobs, 3)
	for _, j := range rep.Jobs {
		assert.True(t, j.Written, j.Job)
	}

	assert.Equal(t,
		`<a href="http://jp-air.example:8073/?f=121500am">Tokyo</a>
<a href="http://example.com:8073/?f=118100am">Zurich</a>
`, readOutput(t, cfg.Airband.Output))

	streams := strings.Split(strings.TrimSuffix(readOutput(t, cfg.Streams.Output), "\n"), "\n")
	require.Len(t, streams, 2)
	assert.Regexp(t, `^NHK World,31m,http://jp-(air|hf)\.example:8073/,9595,am,kiwi$`, streams[0])
	assert.Equal(t, "BBC WS,49m,http://websdr.example:8901/,6195,am,web", streams[1])

	assert.Equal(t, bookmarkServerHeader()+
		`"Tokyo, Japan" jp-air.example 8073 10000.00`+"\n"+
		`"Tokyo West" jp-hf.example 8073 10000.00`+"\n",
		readOutput(t, cfg.Servers.Output))

	counts := rep.Counts()
	assert.Equal(t, 1+1+1, counts[metrics.ResultFound])
	assert.Equal(t, 1, counts[metrics.ResultFallback])
	assert.Equal(t, 2, counts[metrics.ResultSkipped])
}

func bookmarkServerHeader() string {
	return "# KiwiSDR bookmark format is...\n# server port frequency description\n"
}

func TestAirbandSelections(t *testing.T) {
	cfg := fixture(t)
	cfg.Streams.Enabled = false
	cfg.Servers.Enabled = false

	rep, err := newRunner(cfg).RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Jobs, 1)

	sels := rep.Jobs[0].Selections
	require.Len(t, sels, 2)
	assert.Equal(t, Selection{Target: "Tokyo", Frequency: 121_500_000, URL: "http://jp-air.example:8073", Result: metrics.ResultFound, Shortlist: 1}, sels[0])
	assert.Equal(t, Selection{Target: "Zurich", Frequency: 118_100_000, URL: selection.FallbackURL, Result: metrics.ResultFallback}, sels[1])
}

func TestFailedBuildWritesNothing(t *testing.T) {
	cfg := fixture(t)
	require.NoError(t, os.Remove(cfg.Airband.Template))

	rep, err := newRunner(cfg).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "airband")
	assert.False(t, rep.OK())

	for _, path := range []string{cfg.Airband.Output, cfg.Streams.Output, cfg.Servers.Output} {
		_, statErr := os.Stat(path)
		assert.ErrorIs(t, statErr, os.ErrNotExist, path)
	}
}

func TestMissingCatalogFailsRun(t *testing.T) {
	cfg := fixture(t)
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "absent.js")

	_, err := newRunner(cfg).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.js")
}

func TestDryRunBuildsWithoutWriting(t *testing.T) {
	cfg := fixture(t)

	rep, err := newRunner(cfg, WithDryRun(true)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	for _, j := range rep.Jobs {
		assert.False(t, j.Written)
		assert.Positive(t, j.Bytes)
		_, statErr := os.Stat(j.Output)
		assert.ErrorIs(t, statErr, os.ErrNotExist)
	}
}

func TestFixedSeedIsIdempotent(t *testing.T) {
	cfg := fixture(t)

	_, err := newRunner(cfg).RunOnce(context.Background())
	require.NoError(t, err)
	first := readOutput(t, cfg.Streams.Output)

	_, err = newRunner(cfg).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, readOutput(t, cfg.Streams.Output))
}

type recorder struct {
	events []any
}

func (r *recorder) Publish(v any) { r.events = append(r.events, v) }

func TestRunOncePublishesAndCounts(t *testing.T) {
	cfg := fixture(t)
	reg := prometheus.NewRegistry()
	m, err := metrics.NewCollector(reg)
	require.NoError(t, err)
	pub := &recorder{}

	rep, err := newRunner(cfg, WithMetrics(m), WithPublisher(pub)).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Selections.WithLabelValues("airband", metrics.ResultFallback)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Receivers))

	require.NotEmpty(t, pub.events)
	started, ok := pub.events[0].(telemetry.RunStarted)
	require.True(t, ok)
	assert.Equal(t, rep.ID, started.RunID)
	assert.Equal(t, []string{"airband", "streams", "servers"}, started.Jobs)

	var completed *telemetry.RunCompleted
	for _, ev := range pub.events {
		if c, ok := ev.(telemetry.RunCompleted); ok {
			completed = &c
		}
	}
	require.NotNil(t, completed)
	assert.True(t, completed.OK)
	assert.Equal(t, rep.ID, completed.RunID)
}

func TestLogLevelGatesRunnerOutput(t *testing.T) {
	tests := []struct {
		level       string
		wantDebug   bool
		wantSummary bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := fixture(t)
			cfg.Logging.Level = tt.level
			var buf bytes.Buffer
			pub := &recorder{}
			r := New(cfg, log.New(&buf, "", 0),
				WithEngine(selection.New(selection.WithSource(rand.NewPCG(1, 2)))),
				WithPublisher(pub))

			_, err := r.RunOnce(context.Background())
			require.NoError(t, err)

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "airband Zurich: fallback"))
			assert.Equal(t, tt.wantSummary, strings.Contains(out, "done in"))

			var logs int
			for _, ev := range pub.events {
				if _, ok := ev.(telemetry.LogLine); ok {
					logs++
				}
			}
			assert.Equal(t, strings.Count(out, "\n"), logs)
		})
	}
}

func send(t *testing.T, r *Runner, cmd Command) CommandResult {
	t.Helper()
	reply := make(chan CommandResult, 1)
	cmd.Reply = reply
	select {
	case r.Commands <- cmd:
	case <-time.After(5 * time.Second):
		t.Fatalf("command %q not accepted", cmd.Type)
	}
	select {
	case res := <-reply:
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("command %q not answered", cmd.Type)
	}
	return CommandResult{}
}

func expectState(t *testing.T, states <-chan string, want string) {
	t.Helper()
	select {
	case got := <-states:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for state %s", want)
	}
}

func TestRunLoopCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := fixture(t)
	r := newRunner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	states := make(chan string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, func(s string) { states <- s })
	}()

	expectState(t, states, StateRunning)
	expectState(t, states, StateIdle)
	first := r.LastReport()
	require.NotNil(t, first)

	res := send(t, r, Command{Type: "pause"})
	assert.Equal(t, CommandResult{OK: true, Message: "runner paused"}, res)
	expectState(t, states, StatePaused)
	assert.True(t, r.IsPaused())

	res = send(t, r, Command{Type: "run"})
	assert.True(t, res.OK)
	expectState(t, states, StateRunning)
	expectState(t, states, StatePaused)
	assert.NotEqual(t, first.ID, r.LastReport().ID)

	res = send(t, r, Command{Type: "resume"})
	assert.Equal(t, "runner resumed", res.Message)
	expectState(t, states, StateIdle)

	next := cfg
	next.Schedule.IntervalMinutes = 5
	res = send(t, r, Command{Type: "reload", Config: &next})
	assert.True(t, res.OK)
	assert.Equal(t, 5, r.Config().Schedule.IntervalMinutes)

	res = send(t, r, Command{Type: "skip"})
	assert.False(t, res.OK)
	assert.Equal(t, "unknown command: skip", res.Error)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not exit")
	}
}

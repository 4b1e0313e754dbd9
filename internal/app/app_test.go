package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/registry"
)

const catalogJSON = `[
{"name": "JP", "loc": "Tokyo, Japan", "url": "http://jp.example:8073", "snr": "30,25",
 "bands": "100000-150000000", "gps": "(35.60, 139.70)", "users": "0", "users_max": "4"},
{"name": "UK", "loc": "London", "url": "http://uk.example:8073", "snr": "12,28",
 "bands": "0-30000000", "gps": "(51.50, -0.10)", "users": "1", "users_max": "4"}
]`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	cfg := config.Default()
	cfg.Data.Root = dir
	cfg.Catalog.Path = write("kiwisdr_com.js", catalogJSON)
	cfg.Registry.Regions = write("regions", "Japan,34.0,37.0,138.0,141.0,9595000,6000000,9\n")
	cfg.Registry.Bands = write("bands", "31m,15,9400000,9900000\n")
	cfg.Registry.Stations = ""
	cfg.Airband.Template = write("template", `<a href="Tokyo">`)
	cfg.Airband.Output = filepath.Join(dir, "airband-bookmarks")
	cfg.Airband.Regions = []registry.Region{
		{Name: "Tokyo", Box: registry.Box{South: 34.8, North: 36.9, West: 138.7, East: 141.0}, DayFreq: 121_500_000, NightFreq: 121_500_000, UTCOffset: 9},
	}
	cfg.Streams.Enabled = false
	return cfg
}

type harness struct {
	app *App
	srv *httptest.Server
}

// newHarness serves the app's routes and, when loop is set, runs the
// bookmark runner in the background the way Run does.
func newHarness(t *testing.T, cfg config.Config, configPath string, loop bool) *harness {
	t.Helper()
	a, err := New(Options{
		Logger:     log.New(io.Discard, "", 0),
		Cfg:        cfg,
		ConfigPath: configPath,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	if loop {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.runner.Run(ctx, a.transition)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		require.Eventually(t, func() bool { return a.runner.LastReport() != nil }, 5*time.Second, 10*time.Millisecond)
	}
	return &harness{app: a, srv: srv}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (h *harness) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(h.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, testConfig(t), "", false)
	resp, body := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestHealthzDetailed(t *testing.T) {
	h := newHarness(t, testConfig(t), "", true)

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Healthy)
	assert.Equal(t, true, out.Checks["catalog"]["ok"])
	assert.Equal(t, true, out.Checks["last_run"]["ok"])
}

func TestStatusAndVersion(t *testing.T) {
	h := newHarness(t, testConfig(t), "", false)

	_, body := h.get(t, "/api/status")
	status := decode(t, body)
	assert.Equal(t, "kiwibookd", status["name"])
	assert.Equal(t, "BOOTING", status["state"])
	assert.Equal(t, false, status["paused"])
	assert.Equal(t, []any{"airband"}, status["jobs"])

	_, body = h.get(t, "/api/version")
	assert.Equal(t, Version, decode(t, body)["version"])
}

func TestReportBeforeFirstRun(t *testing.T) {
	h := newHarness(t, testConfig(t), "", false)
	resp, _ := h.get(t, "/api/report")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunPauseResume(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(t, cfg, "", true)
	first := h.app.runner.LastReport().ID

	b, err := os.ReadFile(cfg.Airband.Output)
	require.NoError(t, err)
	assert.Equal(t, `<a href="http://jp.example:8073/">`, string(b))

	resp, _ := h.get(t, "/api/pause")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, out := h.post(t, "/api/pause", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "runner paused", out["message"])

	resp, out = h.post(t, "/api/run", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["ok"])
	require.Eventually(t, func() bool { return h.app.runner.LastReport().ID != first }, 5*time.Second, 10*time.Millisecond)

	_, out = h.post(t, "/api/resume", "")
	assert.Equal(t, "runner resumed", out["message"])

	_, body := h.get(t, "/api/report")
	rep := decode(t, body)
	assert.NotEqual(t, first, rep["id"])
	assert.NotEmpty(t, rep["jobs"])

	_, body = h.get(t, "/metrics")
	assert.Contains(t, string(body), `kiwibook_runs_total{outcome="ok"} 2`)
	assert.Contains(t, string(body), `kiwibook_selections_total{job="airband",result="found"} 2`)
}

func TestCatalog(t *testing.T) {
	h := newHarness(t, testConfig(t), "", false)

	_, body := h.get(t, "/api/catalog?limit=1&metric=hf")
	var out struct {
		Receivers int `json:"receivers"`
		Top       []struct {
			URL   string `json:"url"`
			HF    int    `json:"snr_hf"`
			Users string `json:"users"`
		} `json:"top"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.Receivers)
	require.Len(t, out.Top, 1)
	assert.Equal(t, "http://uk.example:8073", out.Top[0].URL)
	assert.Equal(t, 28, out.Top[0].HF)
	assert.Equal(t, "1/4", out.Top[0].Users)

	resp, _ := h.get(t, "/api/catalog?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegions(t *testing.T) {
	h := newHarness(t, testConfig(t), "", false)
	_, body := h.get(t, "/api/regions")

	var out struct {
		Airband []registry.Region `json:"airband"`
		Regions []registry.Region `json:"regions"`
		Bands   []registry.Band   `json:"bands"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Airband, 1)
	assert.Equal(t, "Tokyo", out.Airband[0].Name)
	require.Len(t, out.Regions, 1)
	assert.Equal(t, "Japan", out.Regions[0].Name)
	require.Len(t, out.Bands, 1)
	assert.Equal(t, int64(9_400_000), out.Bands[0].Low)
}

func TestReload(t *testing.T) {
	cfg := testConfig(t)

	body := fmt.Sprintf(`[data]
root = %q

[catalog]
path = %q

[schedule]
interval_minutes = 1

[streams]
enabled = false

[airband]
template = %q
output = %q
`, cfg.Data.Root, cfg.Catalog.Path, cfg.Airband.Template, cfg.Airband.Output)
	path := filepath.Join(cfg.Data.Root, "kiwibook.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	h := newHarness(t, cfg, path, true)

	resp, out := h.post(t, "/api/reload", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, 1, h.app.getConfig().Schedule.IntervalMinutes)
	assert.Equal(t, 1, h.app.runner.Config().Schedule.IntervalMinutes)

	resp, out = h.post(t, "/api/reload", `{"profile": "does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, out["error"], "does-not-exist")
}

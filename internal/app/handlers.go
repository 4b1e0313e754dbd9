package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/jobs"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
)

const commandTimeout = 10 * time.Second

var errRunnerBusy = errors.New("runner busy, try again")

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"name":           name,
		"state":          a.currentState(),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"paused":         a.runner.IsPaused(),
		"data_root":      cfg.Data.Root,
		"jobs":           jobs.Names(jobs.FromConfig(cfg)),
		"interval_min":   cfg.Schedule.IntervalMinutes,
		"ws_clients":     a.hub.Clients(),
	}
	if du := diskUsage(cfg.Data.Root); du != nil {
		resp["disk"] = du
	}
	if rep := a.runner.LastReport(); rep != nil {
		resp["last_run"] = map[string]any{
			"id":       rep.ID,
			"ok":       rep.OK(),
			"finished": rep.Finished.Format(time.RFC3339),
			"error":    rep.Error,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	goVersion := GoVersion
	if goVersion == "unknown" {
		goVersion = runtime.Version()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": goVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.getConfig())
}

func (a *App) handleRegions(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()
	resp := map[string]any{
		"airband": cfg.Airband.Regions,
	}

	reg, err := registry.LoadFiles(cfg.Registry.Regions, cfg.Registry.Bands, "")
	if err != nil {
		resp["error"] = err.Error()
	} else {
		resp["regions"] = reg.Regions
		resp["bands"] = reg.Bands
	}
	writeJSON(w, http.StatusOK, resp)
}

type receiverJSON struct {
	Name  string `json:"name"`
	Loc   string `json:"loc"`
	URL   string `json:"url"`
	SNR   int    `json:"snr"`
	HF    int    `json:"snr_hf"`
	Users string `json:"users"`
}

// handleCatalog reports the cache state and the strongest receivers.
// Query parameters: limit (default 10), metric ("all" or "hf").
func (a *App) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cfg := a.getConfig()
	store := catalog.NewStore(cfg.Catalog.URL, cfg.Catalog.Path, cfg.Data.Root, cfg.Catalog.RefreshHours)

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	metric := catalog.MetricAll
	if r.URL.Query().Get("metric") == "hf" {
		metric = catalog.MetricHF
	}

	rx, err := store.Fetch(r.Context())
	if err != nil {
		jsonError(w, "catalog: "+err.Error(), http.StatusBadGateway)
		return
	}

	top := selection.New().Shortlist(rx, selection.Query{MinSNR: -1, Metric: metric, MaxResults: limit, AnyCapacity: true})
	out := make([]receiverJSON, len(top))
	for i, rcv := range top {
		out[i] = receiverJSON{
			Name:  rcv.Name,
			Loc:   rcv.Loc,
			URL:   rcv.URL,
			SNR:   rcv.SNR.All,
			HF:    rcv.SNR.HF,
			Users: rcv.Record.Users + "/" + rcv.Record.UsersMax,
		}
	}

	resp := map[string]any{
		"receivers": len(rx),
		"top":       out,
	}
	if cfg.Catalog.URL != "" {
		resp["cache"] = store.CacheInfo()
	} else {
		resp["path"] = cfg.Catalog.Path
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleReport(w http.ResponseWriter, _ *http.Request) {
	rep := a.runner.LastReport()
	if rep == nil {
		jsonError(w, "no run has completed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Check data directory.
	tmpPath := filepath.Join(cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": cfg.Data.Root}
	}

	// Catalog: a fresh cache when fetching, otherwise the local file.
	if cfg.Catalog.URL != "" {
		ci := catalog.NewStore(cfg.Catalog.URL, cfg.Catalog.Path, cfg.Data.Root, cfg.Catalog.RefreshHours).CacheInfo()
		if !ci.Fresh {
			allOK = false
		}
		checks["catalog"] = map[string]any{"ok": ci.Fresh, "age_s": ci.AgeS, "exists": ci.Exists}
	} else if _, err := os.Stat(cfg.Catalog.Path); err != nil {
		checks["catalog"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		checks["catalog"] = map[string]any{"ok": true, "path": cfg.Catalog.Path}
	}

	if rep := a.runner.LastReport(); rep != nil {
		if !rep.OK() {
			allOK = false
		}
		checks["last_run"] = map[string]any{"ok": rep.OK(), "id": rep.ID, "error": rep.Error}
	}

	// Config file readable.
	a.cfgMu.RLock()
	configPath := a.configPath
	a.cfgMu.RUnlock()
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Runner controls + reload
// ---------------------------------------------------------------------------

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, jobs.Command{Type: "run"})
}

func (a *App) handlePause(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, jobs.Command{Type: "pause"})
}

func (a *App) handleResume(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, jobs.Command{Type: "resume"})
}

func (a *App) command(w http.ResponseWriter, r *http.Request, cmd jobs.Command) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result, err := a.sendCommand(r.Context(), cmd)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeCommandResult(w, result)
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Accept optional profile name in body: {"profile": "home"}
	var body struct {
		Profile string `json:"profile"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	a.cfgMu.RLock()
	loadPath := a.configPath
	a.cfgMu.RUnlock()

	if body.Profile != "" {
		candidate := config.ProfilePath(config.DefaultConfigDir(), body.Profile)
		if _, err := os.Stat(candidate); err != nil {
			jsonError(w, fmt.Sprintf("profile %q not found at %s", body.Profile, candidate), http.StatusNotFound)
			return
		}
		loadPath = candidate
	}

	if loadPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(loadPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := a.sendCommand(r.Context(), jobs.Command{Type: "reload", Config: &newCfg})
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !result.OK {
		writeCommandResult(w, result)
		return
	}

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.configPath = loadPath
	a.cfgMu.Unlock()

	a.emitLog("info", "config reloaded from "+loadPath)

	writeJSON(w, http.StatusOK, jobs.CommandResult{
		OK:      true,
		Message: "configuration reloaded from " + loadPath,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendCommand hands a command to the runner loop and waits for the reply.
// The loop only reads commands between runs, so a long run surfaces as
// errRunnerBusy rather than a hung request.
func (a *App) sendCommand(ctx context.Context, cmd jobs.Command) (jobs.CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	reply := make(chan jobs.CommandResult, 1)
	cmd.Reply = reply

	select {
	case a.runner.Commands <- cmd:
	case <-ctx.Done():
		return jobs.CommandResult{}, errRunnerBusy
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return jobs.CommandResult{}, errRunnerBusy
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a jobs.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result jobs.CommandResult) {
	code := http.StatusOK
	if !result.OK {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, result)
}

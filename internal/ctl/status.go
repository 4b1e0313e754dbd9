package ctl

import (
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string   `json:"name"`
	State         string   `json:"state"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Paused        bool     `json:"paused"`
	DataRoot      string   `json:"data_root"`
	Jobs          []string `json:"jobs"`
	IntervalMin   int      `json:"interval_min"`
	WSClients     int      `json:"ws_clients"`
	Disk          *struct {
		TotalBytes     int64 `json:"total_bytes"`
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk,omitempty"`
	LastRun *struct {
		ID       string `json:"id"`
		OK       bool   `json:"ok"`
		Finished string `json:"finished"`
		Error    string `json:"error"`
	} `json:"last_run,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	state := colorize(stateColor(s.State), s.State)
	if s.Paused && s.State != "PAUSED" {
		state += colorize(yellow, " (paused)")
	}

	printLine()
	printLine(header("  KIWIBOOK STATUS"))
	printLine(rule(38))
	printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	printf("  %-12s %s\n", colorize(dim, "State:"), state)
	printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	printf("  %-12s %s\n", colorize(dim, "Jobs:"), strings.Join(s.Jobs, ", "))
	printf("  %-12s every %dm\n", colorize(dim, "Schedule:"), s.IntervalMin)
	printf("  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	if s.Disk != nil {
		printf("  %-12s %s free of %s\n", colorize(dim, "Disk:"), formatBytes(s.Disk.AvailableBytes), formatBytes(s.Disk.TotalBytes))
	}
	if s.LastRun != nil {
		result := colorize(green, "ok")
		if !s.LastRun.OK {
			result = colorize(red, "failed: "+s.LastRun.Error)
		}
		printf("  %-12s %s %s %s\n", colorize(dim, "Last run:"), s.LastRun.Finished, colorize(dim, s.LastRun.ID), result)
	} else {
		printf("  %-12s %s\n", colorize(dim, "Last run:"), colorize(dim, "none yet"))
	}
	printf("  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	printLine()

	return nil
}

package ctl

import (
	"strings"
)

type commandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Run asks the daemon to build and write bookmarks now.
func Run(baseURL string, jsonOutput bool) error {
	return runnerControl(baseURL, "/api/run", "STARTED", jsonOutput)
}

// Pause suspends scheduled runs on the daemon.
func Pause(baseURL string, jsonOutput bool) error {
	return runnerControl(baseURL, "/api/pause", "PAUSED", jsonOutput)
}

// Resume resumes scheduled runs.
func Resume(baseURL string, jsonOutput bool) error {
	return runnerControl(baseURL, "/api/resume", "RESUMED", jsonOutput)
}

func runnerControl(baseURL, path, label string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result commandResult
	if err := postJSON(baseURL, path, nil, &result); err != nil {
		return err
	}
	return printResult(result, label, jsonOutput)
}

func printResult(result commandResult, label string, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(result)
	}
	if result.OK {
		printf("\n  %s  %s\n\n", colorize(green, label), result.Message)
	} else {
		printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}

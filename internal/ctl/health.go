package ctl

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// Health checks daemon liveness via GET /healthz. With detail set it asks
// for the component checks instead.
func Health(baseURL string, detail, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	accept := ""
	if detail || jsonOutput {
		accept = "application/json"
	}
	status, body, err := getRaw(baseURL, "/healthz", accept)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var report struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	report.Healthy = status == http.StatusOK
	if accept != "" {
		_ = json.Unmarshal(body, &report)
	}

	if jsonOutput {
		return printJSON(map[string]any{"healthy": report.Healthy, "url": baseURL, "checks": report.Checks})
	}

	printLine()
	if report.Healthy {
		printf("  %s  kiwibookd is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		printf("  %s  kiwibookd returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := report.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
		}
		info, _ := c["error"].(string)
		if info == "" {
			info, _ = c["path"].(string)
		}
		printf("    %s %-12s %s\n", mark, name, colorize(dim, info))
	}
	printLine()

	return nil
}

package ctl

import (
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/kiwibook/internal/jobs"
)

// Report prints the daemon's most recent run report.
func Report(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var rep jobs.Report
	if err := getJSON(baseURL, "/api/report", &rep); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(rep)
	}

	result := colorize(green, "ok")
	if !rep.OK() {
		result = colorize(red, "failed: "+rep.Error)
	}
	if rep.DryRun {
		result += colorize(dim, " (dry run)")
	}

	printLine()
	printLine(header("  LAST RUN"))
	printLine(rule(60))
	printf("  %-12s %s\n", colorize(dim, "ID:"), rep.ID)
	printf("  %-12s %s\n", colorize(dim, "Finished:"), rep.Finished.Local().Format(time.DateTime))
	printf("  %-12s %s\n", colorize(dim, "Duration:"), rep.Duration().Round(time.Millisecond))
	printf("  %-12s %d\n", colorize(dim, "Receivers:"), rep.Receivers)
	printf("  %-12s %s\n", colorize(dim, "Result:"), result)

	for _, j := range rep.Jobs {
		written := colorize(green, "written")
		if !j.Written {
			written = colorize(dim, "not written")
		}
		printf("\n  %s  %s  %s %s\n", colorize(bold, "["+j.Job+"]"), j.Output,
			colorize(dim, formatBytes(int64(j.Bytes))), written)
		if len(j.Selections) == 0 {
			continue
		}
		t := newTable("    ", "TARGET", "FREQ", "RESULT", "N", "URL")
		t.alignRight(3)
		for _, s := range j.Selections {
			freq := "-"
			if s.Frequency > 0 {
				freq = formatMHz(s.Frequency)
			}
			t.row(s.Target, freq, colorize(resultColor(s.Result), s.Result), strconv.Itoa(s.Shortlist), s.URL)
		}
		t.flush()
	}
	printLine()

	return nil
}

package ctl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/large-farva/kiwibook/internal/registry"
)

// RegionsResponse mirrors the JSON returned by GET /api/regions.
type RegionsResponse struct {
	Airband []registry.Region `json:"airband"`
	Regions []registry.Region `json:"regions,omitempty"`
	Bands   []registry.Band   `json:"bands,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Regions lists the airband regions and the region and band tables the
// daemon has loaded.
func Regions(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var r RegionsResponse
	if err := getJSON(baseURL, "/api/regions", &r); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(r)
	}

	printLine()
	printLine(header("  AIRBAND REGIONS"))
	printLine(rule(60))
	regionTable(r.Airband)

	printLine(header("  REGIONS"))
	printLine(rule(60))
	if r.Error != "" {
		printf("  %s\n\n", colorize(red, r.Error))
		return nil
	}
	regionTable(r.Regions)

	printLine(header("  BANDS"))
	printLine(rule(60))
	if len(r.Bands) == 0 {
		printLine(colorize(dim, "  none"))
	} else {
		t := newTable("  ", "NAME", "LOW", "HIGH", "MIN SNR")
		t.alignRight(3)
		for _, b := range r.Bands {
			t.row(b.Name, formatMHz(b.Low), formatMHz(b.High), strconv.Itoa(b.MinSNR))
		}
		t.flush()
	}
	printLine()

	return nil
}

func regionTable(regions []registry.Region) {
	if len(regions) == 0 {
		printLine(colorize(dim, "  none"))
		printLine()
		return
	}
	t := newTable("  ", "NAME", "LAT", "LON", "UTC", "DAY", "NIGHT")
	for _, r := range regions {
		t.row(
			r.Name,
			fmt.Sprintf("%.1f..%.1f", r.Box.South, r.Box.North),
			fmt.Sprintf("%.1f..%.1f", r.Box.West, r.Box.East),
			fmt.Sprintf("%+g", r.UTCOffset),
			formatMHz(r.DayFreq),
			formatMHz(r.NightFreq),
		)
	}
	t.flush()
	printLine()
}

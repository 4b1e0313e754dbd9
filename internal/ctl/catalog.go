package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CatalogOptions configures the catalog command.
type CatalogOptions struct {
	Limit  int
	Metric string // "all" or "hf"
	JSON   bool
}

// CatalogResponse mirrors the JSON returned by GET /api/catalog.
type CatalogResponse struct {
	Receivers int `json:"receivers"`
	Top       []struct {
		Name  string `json:"name"`
		Loc   string `json:"loc"`
		URL   string `json:"url"`
		SNR   int    `json:"snr"`
		HF    int    `json:"snr_hf"`
		Users string `json:"users"`
	} `json:"top"`
	Path  string `json:"path,omitempty"`
	Cache *struct {
		Path      string `json:"path"`
		Exists    bool   `json:"exists"`
		Fresh     bool   `json:"fresh"`
		ModTime   string `json:"mod_time"`
		AgeS      int    `json:"age_s"`
		Size      int64  `json:"size"`
		SourceURL string `json:"source_url"`
		MaxAgeH   int    `json:"max_age_hours"`
	} `json:"cache,omitempty"`
}

// Catalog shows the receiver catalog the daemon selects from and its
// strongest entries. The daemon may fetch the list, so this uses a longer
// timeout than the other commands.
func Catalog(baseURL string, opts CatalogOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Metric != "" {
		q.Set("metric", opts.Metric)
	}
	path := "/api/catalog"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var c CatalogResponse
	if err := getJSONWith(slowClient, baseURL, path, &c); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(c)
	}

	printLine()
	printLine(header("  RECEIVER CATALOG"))
	printLine(rule(60))
	printf("  %-12s %d\n", colorize(dim, "Receivers:"), c.Receivers)
	if c.Cache != nil {
		fresh := colorize(green, "fresh")
		if !c.Cache.Exists {
			fresh = colorize(red, "missing")
		} else if !c.Cache.Fresh {
			fresh = colorize(yellow, "stale")
		}
		printf("  %-12s %s\n", colorize(dim, "Source:"), c.Cache.SourceURL)
		printf("  %-12s %s (%s, %s, max %dh)\n", colorize(dim, "Cache:"), c.Cache.Path, fresh,
			formatBytes(c.Cache.Size), c.Cache.MaxAgeH)
		if c.Cache.Exists {
			printf("  %-12s %s\n", colorize(dim, "Age:"), formatDuration(time.Duration(c.Cache.AgeS)*time.Second))
		}
	} else {
		printf("  %-12s %s\n", colorize(dim, "File:"), c.Path)
	}
	printLine()

	if len(c.Top) == 0 {
		printLine(colorize(dim, "  no receivers"))
		printLine()
		return nil
	}

	t := newTable("  ", "#", "SNR", "HF", "USERS", "NAME", "URL")
	for i, r := range c.Top {
		t.row(fmt.Sprint(i+1), strconv.Itoa(r.SNR), strconv.Itoa(r.HF), r.Users, truncate(r.Name, 40), r.URL)
	}
	t.flush()
	printLine()

	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Package ctl implements the client-side commands for kiwictl.
// It talks to a running kiwibookd over HTTP and WebSocket and renders the
// results to the terminal.
package ctl

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
)

// stdout is where every command prints. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

// colorEnabled reports whether stdout is a terminal that should get ANSI
// codes. NO_COLOR and redirected output both turn colour off.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// stateColor returns the ANSI color code appropriate for a daemon state.
func stateColor(state string) string {
	if !colorEnabled() {
		return ""
	}
	switch state {
	case "IDLE":
		return green
	case "RUNNING":
		return blue
	case "PAUSED":
		return yellow
	case "BOOTING":
		return dim
	default:
		return white
	}
}

// resultColor colours a selection result.
func resultColor(result string) string {
	switch result {
	case "found":
		return green
	case "fallback":
		return yellow
	default:
		return dim
	}
}

// colorize wraps text with an ANSI color sequence.
// Returns the text unchanged when color output is disabled.
func colorize(color, text string) string {
	if !colorEnabled() || color == "" {
		return text
	}
	return color + text + reset
}

// header returns a bold section header, or plain text when color is off.
func header(title string) string {
	if colorEnabled() {
		return bold + title + reset
	}
	return title
}

func rule(width int) string {
	return colorize(dim, "  "+strings.Repeat("─", width))
}

func printf(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}

func printLine(args ...any) {
	fmt.Fprintln(stdout, args...)
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders a time.Duration as a compact human string like
// "2h 14m 8s" or "45s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatBytes renders a byte count as a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatMHz renders a frequency in Hz as MHz.
func formatMHz(hz int64) string {
	return fmt.Sprintf("%.3f MHz", float64(hz)/1e6)
}

// table writes aligned columns with a leading indent.
type table struct {
	tw     *tabwriter.Writer
	indent string
	right  map[int]bool
}

func newTable(indent string, headers ...string) *table {
	t := &table{
		tw:     tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0),
		indent: indent,
		right:  map[int]bool{},
	}
	t.row(headers...)
	return t
}

// alignRight right-aligns column i. Must be called before rows that need it.
func (t *table) alignRight(i int) {
	t.right[i] = true
}

func (t *table) row(cells ...string) {
	var b strings.Builder
	b.WriteString(t.indent)
	for i, c := range cells {
		if t.right[i] {
			b.WriteString(padLeft(c, 8))
		} else {
			b.WriteString(c)
		}
		b.WriteByte('\t')
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(t.tw, b.String())
}

func (t *table) flush() {
	_ = t.tw.Flush()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

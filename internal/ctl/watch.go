package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// wsURL turns the daemon's HTTP base URL into its WebSocket endpoint.
func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	target, err := wsURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		printLine()
		printf("  %s %s\n", colorize(green, "connected"), colorize(dim, target))
		if len(opts.Filter) > 0 {
			printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		printLine(rule(50))
		printLine()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stream(conn, opts)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
		if !opts.JSON {
			printLine()
			printLine(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// stream prints events from conn until the connection closes.
func stream(conn *websocket.Conn, opts WatchOptions) {
	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if len(filterSet) > 0 {
			var ev struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &ev); err == nil && !filterSet[ev.Type] {
				continue
			}
		}

		if opts.JSON {
			printLine(string(msg))
		} else {
			renderEvent(msg)
		}
	}
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Falls back to raw JSON for unrecognized event types.
func renderEvent(raw []byte) {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		printf("  %s\n", string(raw))
		return
	}

	evType, _ := ev["type"].(string)
	ts := formatEventTime(ev)

	switch evType {
	case "heartbeat":
		state, _ := ev["state"].(string)
		uptime, _ := ev["uptime_seconds"].(float64)
		printf("  %s %s  %s  up %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(state), state),
			colorize(dim, formatDuration(time.Duration(uptime)*time.Second)),
		)

	case "state":
		from, _ := ev["from"].(string)
		to, _ := ev["to"].(string)
		printf("  %s %s  %s %s %s\n",
			colorize(dim, ts),
			colorize(bold, "STATE"),
			colorize(stateColor(from), from),
			colorize(dim, "->"),
			colorize(stateColor(to), to),
		)

	case "log":
		level, _ := ev["level"].(string)
		message, _ := ev["message"].(string)
		component, _ := ev["component"].(string)
		src := ""
		if component != "" {
			src = colorize(dim, "["+component+"] ")
		}
		printf("  %s %s  %s%s\n", colorize(dim, ts), formatLogLevel(level), src, message)

	case "run_started":
		id, _ := ev["run_id"].(string)
		var names []string
		if js, ok := ev["jobs"].([]any); ok {
			for _, j := range js {
				if s, ok := j.(string); ok {
					names = append(names, s)
				}
			}
		}
		printLine()
		printf("  %s %s  %s  %s\n",
			colorize(dim, ts),
			header("RUN"),
			colorize(dim, shortID(id)),
			strings.Join(names, ", "),
		)

	case "selection":
		job, _ := ev["job"].(string)
		target, _ := ev["target"].(string)
		u, _ := ev["url"].(string)
		found, _ := ev["found"].(bool)
		n, _ := ev["shortlist"].(float64)
		result := "fallback"
		if found {
			result = "found"
		}
		printf("  %s %s  %s %s  %s %s\n",
			colorize(dim, ts),
			colorize(cyan, padRight(job, 8)),
			padRight(target, 16),
			colorize(resultColor(result), padRight(result, 8)),
			u,
			colorize(dim, fmt.Sprintf("(%d)", int(n))),
		)

	case "run_completed":
		id, _ := ev["run_id"].(string)
		ok, _ := ev["ok"].(bool)
		sels, _ := ev["selections"].(float64)
		fbs, _ := ev["fallbacks"].(float64)
		dur, _ := ev["duration_s"].(float64)
		result := colorize(green, "DONE")
		if !ok {
			msg, _ := ev["error"].(string)
			result = colorize(red, "FAILED") + " " + msg
		}
		printf("  %s %s  %s  %d selections, %d fallbacks in %.2fs\n",
			colorize(dim, ts),
			result,
			colorize(dim, shortID(id)),
			int(sels), int(fbs), dur,
		)
		printLine()

	default:
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			printf("  %s\n", string(raw))
			return
		}
		printf("  %s\n", string(pretty))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		if len(tsRaw) > 10 {
			return tsRaw[:10]
		}
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}

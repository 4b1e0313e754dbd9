// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between kiwibookd and its clients.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat    EventType = "heartbeat"
	EventState        EventType = "state"
	EventRunStarted   EventType = "run_started"
	EventRunCompleted EventType = "run_completed"
	EventSelection    EventType = "selection"
	EventLog          EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewEvent stamps an envelope of the given type.
func NewEvent(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the daemon moves between operating
// states (e.g. IDLE -> RUNNING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// RunStarted marks the beginning of a bookmark run.
type RunStarted struct {
	Event
	RunID string   `json:"run_id"`
	Jobs  []string `json:"jobs"`
}

// RunCompleted closes a run. Error is set when the run failed and nothing
// was written.
type RunCompleted struct {
	Event
	RunID      string  `json:"run_id"`
	OK         bool    `json:"ok"`
	Selections int     `json:"selections"`
	Fallbacks  int     `json:"fallbacks"`
	DurationS  float64 `json:"duration_s"`
	Error      string  `json:"error,omitempty"`
}

// Selection reports one receiver choice made during a run.
type Selection struct {
	Event
	RunID     string `json:"run_id"`
	Job       string `json:"job"`
	Target    string `json:"target"`
	URL       string `json:"url"`
	Found     bool   `json:"found"`
	Shortlist int    `json:"shortlist"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Log builds a log event for component.
func Log(component, level, message string) LogLine {
	return LogLine{Event: NewEvent(EventLog, component), Level: level, Message: message}
}

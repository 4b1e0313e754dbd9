package jobs

import (
	"time"

	"github.com/large-farva/kiwibook/internal/metrics"
)

// Selection records one receiver choice made by a job. Result is one of
// metrics.ResultFound, ResultFallback, or ResultSkipped.
type Selection struct {
	Target    string `json:"target"`
	Frequency int64  `json:"frequency_hz,omitempty"`
	URL       string `json:"url,omitempty"`
	Result    string `json:"result"`
	Shortlist int    `json:"shortlist"`
}

// Found reports whether a real receiver was chosen.
func (s Selection) Found() bool {
	return s.Result == metrics.ResultFound
}

// JobReport is the outcome of one job within a run.
type JobReport struct {
	Job        string      `json:"job"`
	Output     string      `json:"output"`
	Bytes      int         `json:"bytes"`
	Written    bool        `json:"written"`
	Selections []Selection `json:"selections"`
}

// Report describes a run from start to finish.
type Report struct {
	ID        string      `json:"id"`
	Started   time.Time   `json:"started"`
	Finished  time.Time   `json:"finished"`
	Receivers int         `json:"receivers"`
	DryRun    bool        `json:"dry_run,omitempty"`
	Jobs      []JobReport `json:"jobs"`
	Error     string      `json:"error,omitempty"`
}

// OK reports whether the run finished without error.
func (r *Report) OK() bool {
	return r.Error == ""
}

// Duration is the run's wall time.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Counts tallies selections across all jobs by result.
func (r *Report) Counts() map[string]int {
	counts := map[string]int{}
	for _, j := range r.Jobs {
		for _, s := range j.Selections {
			counts[s.Result]++
		}
	}
	return counts
}

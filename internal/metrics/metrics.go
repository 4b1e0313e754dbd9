// Package metrics exposes Prometheus instrumentation for bookmark runs.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the outcome label of kiwibook_runs_total.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Selection results used as the result label of kiwibook_selections_total.
const (
	ResultFound    = "found"
	ResultFallback = "fallback"
	ResultSkipped  = "skipped"
)

// Collector holds the run metrics. All methods are safe on a nil receiver so
// callers without metrics can pass nil.
type Collector struct {
	gatherer prometheus.Gatherer

	Runs        *prometheus.CounterVec
	Selections  *prometheus.CounterVec
	Receivers   prometheus.Gauge
	RunDuration prometheus.Histogram
}

// NewCollector registers the run metrics against reg, falling back to the
// default registry when reg is nil. Registering twice on the same registry
// returns the already-registered metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kiwibook_runs_total",
		Help: "Bookmark runs by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	selections, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kiwibook_selections_total",
		Help: "Receiver selections by job and result.",
	}, []string{"job", "result"}))
	if err != nil {
		return nil, err
	}

	receivers, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kiwibook_catalog_receivers",
		Help: "Receivers in the most recently loaded catalog.",
	}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiwibook_run_duration_seconds",
		Help:    "Wall time of bookmark runs.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:    gatherer,
		Runs:        runs,
		Selections:  selections,
		Receivers:   receivers,
		RunDuration: duration,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return c, err
	}
	return c, nil
}

// Gatherer returns the gatherer the collector was registered with.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// ObserveRun records a finished run.
func (c *Collector) ObserveRun(ok bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeFailed
	}
	c.Runs.WithLabelValues(outcome).Inc()
	c.RunDuration.Observe(d.Seconds())
}

// ObserveSelection counts one selection for job.
func (c *Collector) ObserveSelection(job, result string) {
	if c == nil {
		return
	}
	c.Selections.WithLabelValues(job, result).Inc()
}

// SetReceivers records the catalog size.
func (c *Collector) SetReceivers(n int) {
	if c == nil {
		return
	}
	c.Receivers.Set(float64(n))
}

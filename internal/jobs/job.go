// Package jobs turns configuration into bookmark artifacts. Each job renders
// one output file from a catalog snapshot; the Runner builds every enabled
// job and only then writes the results.
package jobs

import (
	"context"

	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
)

// Input is everything a job reads during a run.
type Input struct {
	Receivers []catalog.Receiver
	Registry  *registry.Registry
	Engine    *selection.Engine
}

// Job renders one bookmark document.
type Job interface {
	Name() string
	// Output is the path the rendered document is written to.
	Output() string
	// NeedsRegistry reports whether the job reads the CSV tables.
	NeedsRegistry() bool
	Build(ctx context.Context, in Input) (string, []Selection, error)
}

// FromConfig returns the enabled jobs in a fixed order.
func FromConfig(cfg config.Config) []Job {
	var out []Job
	if cfg.Airband.Enabled {
		out = append(out, &Airband{Cfg: cfg.Airband})
	}
	if cfg.Streams.Enabled {
		out = append(out, &Streams{Cfg: cfg.Streams})
	}
	if cfg.Servers.Enabled {
		out = append(out, &Servers{Cfg: cfg.Servers})
	}
	return out
}

// Names lists job names.
func Names(js []Job) []string {
	names := make([]string, len(js))
	for i, j := range js {
		names[i] = j.Name()
	}
	return names
}

package jobs

import (
	"context"

	"github.com/large-farva/kiwibook/internal/bookmark"
	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/metrics"
	"github.com/large-farva/kiwibook/internal/selection"
)

// Servers writes the SuperSDR server list: the strongest receivers by HF
// SNR anywhere in the world, busy or not, best first.
type Servers struct {
	Cfg config.ServersConfig
}

func (j *Servers) Name() string        { return "servers" }
func (j *Servers) Output() string      { return j.Cfg.Output }
func (j *Servers) NeedsRegistry() bool { return false }

func (j *Servers) Query() selection.Query {
	return selection.Query{
		MinSNR:      j.Cfg.MinSNR,
		Metric:      catalog.MetricHF,
		MaxResults:  j.Cfg.MaxResults,
		AnyCapacity: true,
	}
}

func (j *Servers) Build(ctx context.Context, in Input) (string, []Selection, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	short := in.Engine.Shortlist(in.Receivers, j.Query())
	lines := make([]bookmark.ServerLine, len(short))
	for i, r := range short {
		lines[i] = bookmark.ServerLine{Location: r.Loc, URL: r.URL, Frequency: j.Cfg.DefaultFrequency}
	}

	result := metrics.ResultFound
	if len(short) == 0 {
		result = metrics.ResultSkipped
	}
	sel := Selection{Target: "world", Result: result, Shortlist: len(short)}
	return bookmark.Lines(bookmark.ServerHeader, lines), []Selection{sel}, nil
}

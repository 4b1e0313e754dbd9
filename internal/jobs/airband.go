package jobs

import (
	"context"

	"github.com/large-farva/kiwibook/internal/bookmark"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/metrics"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
)

// Airband fills the airband template with one receiver per region. Regions
// with no qualifying receiver get the fallback URL so the document never
// keeps a raw placeholder.
type Airband struct {
	Cfg config.AirbandConfig
}

func (j *Airband) Name() string        { return "airband" }
func (j *Airband) Output() string      { return j.Cfg.Output }
func (j *Airband) NeedsRegistry() bool { return false }

// Band is the frequency range a receiver must cover.
func (j *Airband) Band() registry.Band {
	return registry.Band{
		Name:   "airband",
		MinSNR: j.Cfg.MinSNR,
		Low:    j.Cfg.FreqLow,
		High:   j.Cfg.FreqHigh,
	}
}

func (j *Airband) Build(ctx context.Context, in Input) (string, []Selection, error) {
	tpl, err := bookmark.ReadTemplate(j.Cfg.Template)
	if err != nil {
		return "", nil, err
	}

	band := j.Band()
	subs := make([]bookmark.Placeholder, 0, len(j.Cfg.Regions))
	sels := make([]Selection, 0, len(j.Cfg.Regions))
	for _, region := range j.Cfg.Regions {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		short := in.Engine.Select(in.Receivers, selection.ForBand(region, band, j.Cfg.MaxResults))
		n := len(short)
		res := in.Engine.PickFrom(short)

		sel := Selection{
			Target:    region.Name,
			Frequency: in.Engine.FrequencyFor(region),
			URL:       res.Or(j.Cfg.FallbackURL),
			Result:    metrics.ResultFound,
			Shortlist: n,
		}
		if _, ok := res.Get(); !ok {
			sel.Result = metrics.ResultFallback
		}
		sels = append(sels, sel)
		subs = append(subs, bookmark.Placeholder{Name: region.Name, URL: sel.URL})
	}
	return tpl.Render(subs), sels, nil
}

package jobs

import (
	"context"
	"fmt"

	"github.com/large-farva/kiwibook/internal/bookmark"
	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/metrics"
	"github.com/large-farva/kiwibook/internal/registry"
	"github.com/large-farva/kiwibook/internal/selection"
)

// Streams resolves the stations table into stream bookmarks.
//
// A kiwi station produces one line per region whose name matches the
// station's region, each pointing at a receiver picked inside that region
// for the band holding the station frequency. Stations with no match are
// left out. Other receiver types keep their own URL and appear once.
type Streams struct {
	Cfg config.StreamsConfig
}

func (j *Streams) Name() string        { return "streams" }
func (j *Streams) Output() string      { return j.Cfg.Output }
func (j *Streams) NeedsRegistry() bool { return true }

func (j *Streams) Build(ctx context.Context, in Input) (string, []Selection, error) {
	var (
		lines []bookmark.StreamLine
		sels  []Selection
	)
	for _, st := range in.Registry.Stations {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		hz, err := st.Hz()
		if err != nil {
			return "", nil, fmt.Errorf("station %q: frequency %q: %w", st.Description, st.Frequency, err)
		}
		band, hasBand := in.Registry.Bands.ByFrequency(hz)

		line := bookmark.StreamLine{
			Description: st.Description,
			Band:        band.Name,
			Frequency:   st.Frequency,
			Mode:        st.Mode,
			SDRType:     string(st.SDRType),
		}

		switch {
		case st.SDRType == registry.SDRKiwi:
			regions := in.Registry.RegionsNamed(st.Region)
			if !hasBand || len(regions) == 0 {
				sels = append(sels, Selection{Target: st.Description, Frequency: hz, Result: metrics.ResultSkipped})
				continue
			}
			for _, region := range regions {
				short := in.Engine.Select(in.Receivers, selection.ForBand(region, band, j.Cfg.MaxResults))
				n := len(short)
				url, ok := in.Engine.PickFrom(short).Get()
				if !ok {
					sels = append(sels, Selection{Target: st.Description, Frequency: hz, Result: metrics.ResultSkipped})
					continue
				}
				sels = append(sels, Selection{Target: st.Description, Frequency: hz, URL: url, Result: metrics.ResultFound, Shortlist: n})
				l := line
				l.URL = url + "/"
				lines = append(lines, l)
			}

		case st.SDRType.Passthrough():
			line.URL = st.URL
			lines = append(lines, line)
		}
	}
	return bookmark.Lines("", lines), sels, nil
}

// Package selection picks receivers from the catalog for a query.
//
// A query is turned into a set of independent predicates (quality, band
// coverage, geography, capacity). Survivors are ranked by SNR and cut to the
// top N; that ranking sets the quality floor. Pick then shuffles the
// shortlist and takes the first entry, so repeated runs spread listeners over
// receivers of comparable quality instead of always hitting the best one.
package selection

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/registry"
)

// FallbackURL is the placeholder bookmarked when no receiver qualifies.
const FallbackURL = "http://example.com:8073"

// Query describes what a caller wants from the catalog. Zero-valued parts
// are left out of the filter pipeline.
type Query struct {
	// Region restricts receivers to the region's box when set.
	Region *registry.Region
	// Low and High are the band the receiver must cover, in Hz. A zero
	// High disables the coverage filter.
	Low, High int64
	MinSNR    int
	Metric    catalog.Metric
	// MaxResults caps the shortlist. Non-positive means no cap.
	MaxResults int
	// AnyCapacity disables the free-slot filter.
	AnyCapacity bool
}

// ForBand builds a query for a region and band, taking the band's SNR floor.
func ForBand(region registry.Region, band registry.Band, maxResults int) Query {
	return Query{
		Region:     &region,
		Low:        band.Low,
		High:       band.High,
		MinSNR:     band.MinSNR,
		MaxResults: maxResults,
	}
}

// Predicates assembles the filters this query asks for.
func (q Query) Predicates() []Predicate {
	preds := []Predicate{MinSNR(q.MinSNR, q.Metric)}
	if q.High > 0 {
		preds = append(preds, Covers(q.Low, q.High))
	}
	if q.Region != nil {
		preds = append(preds, Within(q.Region.Box))
	}
	if !q.AnyCapacity {
		preds = append(preds, HasCapacity())
	}
	return preds
}

// Rank sorts receivers best first by SNR under metric m. The sort is stable
// and receivers without a readable SNR go last.
func Rank(rx []catalog.Receiver, m catalog.Metric) {
	slices.SortStableFunc(rx, func(a, b catalog.Receiver) int {
		aok, bok := a.Has(catalog.FieldSNR), b.Has(catalog.FieldSNR)
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case !aok && !bok:
			return 0
		}
		return cmp.Compare(b.SNR.Value(m), a.SNR.Value(m))
	})
}

// Result is the outcome of picking one receiver: a URL, or nothing.
type Result struct {
	url string
	ok  bool
}

// Found wraps a selected URL.
func Found(url string) Result { return Result{url: url, ok: true} }

// Empty is the result when no receiver qualified.
func Empty() Result { return Result{} }

// Get returns the URL and whether one was found.
func (r Result) Get() (string, bool) { return r.url, r.ok }

// Or returns the URL, or fallback when nothing was found.
func (r Result) Or(fallback string) string {
	if r.ok {
		return r.url
	}
	return fallback
}

// Engine runs queries against a receiver snapshot. It owns the random
// source for tie-breaking and is not safe for concurrent use.
type Engine struct {
	rnd *rand.Rand
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource fixes the random source, making picks reproducible.
func WithSource(src rand.Source) Option {
	return func(e *Engine) { e.rnd = rand.New(src) }
}

// WithClock replaces time.Now for day/night decisions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine seeded from the runtime's random source.
func New(opts ...Option) *Engine {
	e := &Engine{
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now is the engine's clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Shortlist filters rx by the query, ranks the survivors, and truncates to
// MaxResults. The input slice is not modified.
func (e *Engine) Shortlist(rx []catalog.Receiver, q Query) []catalog.Receiver {
	out := Filter(rx, q.Predicates()...)
	Rank(out, q.Metric)
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out
}

// Select returns the shortlist as URLs, best first.
func (e *Engine) Select(rx []catalog.Receiver, q Query) []string {
	short := e.Shortlist(rx, q)
	urls := make([]string, len(short))
	for i, r := range short {
		urls[i] = r.URL
	}
	return urls
}

// Pick shuffles the shortlist and returns its first URL.
func (e *Engine) Pick(rx []catalog.Receiver, q Query) Result {
	return e.PickFrom(e.Select(rx, q))
}

// PickFrom shuffles urls in place and returns the first one.
func (e *Engine) PickFrom(urls []string) Result {
	if len(urls) == 0 {
		return Empty()
	}
	e.rnd.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
	return Found(urls[0])
}

// FrequencyFor returns the region's day or night frequency at the engine's
// current time.
func (e *Engine) FrequencyFor(region registry.Region) int64 {
	return region.FrequencyAt(e.now())
}

package selection

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/kiwibook/internal/catalog"
	"github.com/large-farva/kiwibook/internal/registry"
)

var tokyo = registry.Region{
	Name:      "Tokyo",
	Box:       registry.Box{South: 34.8, North: 36.9, West: 138.7, East: 141.0},
	DayFreq:   121_500_000,
	NightFreq: 121_500_000,
	UTCOffset: 9,
}

var airband = registry.Band{Name: "air", MinSNR: 15, Low: 108_100_000, High: 137_900_000}

func rx(url, snr, bands, gps, users, max string) catalog.Receiver {
	return catalog.NewReceiver(catalog.Record{
		URL: url, SNR: snr, Bands: bands, GPS: gps, Users: users, UsersMax: max,
	})
}

func seeded() *Engine {
	return New(WithSource(rand.NewPCG(1, 2)))
}

func TestShortlistComposesPredicates(t *testing.T) {
	records := []catalog.Receiver{
		rx("http://a:8073", "25", "100000000-150000000", "(35.6, 139.7)", "0", "4"),
		rx("http://b:8073", "30", "0-30000000", "(35.6, 139.7)", "0", "4"),
		rx("http://c:8073", "10", "100000000-150000000", "(35.6, 139.7)", "0", "4"),
	}

	got := seeded().Select(records, ForBand(tokyo, airband, 10))
	assert.Equal(t, []string{"http://a:8073"}, got)
}

func TestEmptyCatalogFallsBack(t *testing.T) {
	e := seeded()
	for _, region := range []registry.Region{tokyo, {Name: "Zurich"}} {
		res := e.Pick(nil, ForBand(region, airband, 10))
		_, ok := res.Get()
		assert.False(t, ok)
		assert.Equal(t, FallbackURL, res.Or(FallbackURL))
	}
}

func TestCoverageIsStrict(t *testing.T) {
	records := []catalog.Receiver{
		rx("exact", "40", "108100000-137900000", "(35.6, 139.7)", "0", "4"),
		rx("narrow", "40", "118000000-137000000", "(35.6, 139.7)", "0", "4"),
		rx("low-edge", "40", "108100000-140000000", "(35.6, 139.7)", "0", "4"),
		rx("wide", "40", "100000000-140000000", "(35.6, 139.7)", "0", "4"),
	}
	got := Filter(records, Covers(airband.Low, airband.High))
	require.Len(t, got, 1)
	assert.Equal(t, "wide", got[0].URL)
	for _, r := range got {
		assert.Less(t, r.Bands.Low, airband.Low)
		assert.Greater(t, r.Bands.High, airband.High)
	}
}

func TestGeoIsStrict(t *testing.T) {
	records := []catalog.Receiver{
		rx("inside", "40", "0-1", "(35.0, 140.0)", "0", "1"),
		rx("on-south-edge", "40", "0-1", "(34.8, 140.0)", "0", "1"),
		rx("on-east-edge", "40", "0-1", "(35.0, 141.0)", "0", "1"),
		rx("outside", "40", "0-1", "(43.0, 141.3)", "0", "1"),
		rx("no-gps", "40", "0-1", "", "0", "1"),
	}
	got := Filter(records, Within(tokyo.Box))
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].URL)
	for _, r := range got {
		assert.True(t, r.Position.Lat > tokyo.Box.South && r.Position.Lat < tokyo.Box.North)
		assert.True(t, r.Position.Lon > tokyo.Box.West && r.Position.Lon < tokyo.Box.East)
	}
}

func TestCapacity(t *testing.T) {
	records := []catalog.Receiver{
		rx("free", "40", "0-1", "", "3", "4"),
		rx("full", "40", "0-1", "", "4", "4"),
		rx("broken", "40", "0-1", "", "x", "4"),
	}
	got := Filter(records, HasCapacity())
	require.Len(t, got, 1)
	assert.Equal(t, "free", got[0].URL)
	assert.Less(t, got[0].Users, got[0].UsersMax)
}

func TestMalformedRecordsAreExcludedNotFatal(t *testing.T) {
	records := []catalog.Receiver{
		rx("bad-snr", "??", "100000000-150000000", "(35.6, 139.7)", "0", "4"),
		rx("bad-bands", "40", "wide", "(35.6, 139.7)", "0", "4"),
		rx("bad-gps", "40", "100000000-150000000", "Tokyo", "0", "4"),
		rx("bad-users", "40", "100000000-150000000", "(35.6, 139.7)", "", "4"),
		rx("good", "40", "100000000-150000000", "(35.6, 139.7)", "0", "4"),
	}
	assert.Equal(t, []string{"good"}, seeded().Select(records, ForBand(tokyo, airband, 10)))
}

func TestRankingAndTruncation(t *testing.T) {
	var records []catalog.Receiver
	for i, snr := range []int{12, 40, 25, 40, 33, 18, 29} {
		records = append(records, rx(fmt.Sprintf("rx%d", i), fmt.Sprint(snr), "0-1", "", "0", "1"))
	}

	q := Query{MinSNR: 0, MaxResults: 4}
	short := seeded().Shortlist(records, q)
	require.Len(t, short, 4)
	for i := 1; i < len(short); i++ {
		assert.GreaterOrEqual(t, short[i-1].SNR.All, short[i].SNR.All)
	}
	// Stable: rx1 precedes rx3 at equal SNR.
	assert.Equal(t, []string{"rx1", "rx3", "rx4", "rx6"}, []string{short[0].URL, short[1].URL, short[2].URL, short[3].URL})

	q.MaxResults = 0
	assert.Len(t, seeded().Shortlist(records, q), len(records))
}

func TestRankPutsUnreadableSNRLast(t *testing.T) {
	records := []catalog.Receiver{
		rx("none", "", "0-1", "", "0", "1"),
		rx("low", "5", "0-1", "", "0", "1"),
		rx("high", "9", "0-1", "", "0", "1"),
	}
	Rank(records, catalog.MetricAll)
	assert.Equal(t, "high", records[0].URL)
	assert.Equal(t, "low", records[1].URL)
	assert.Equal(t, "none", records[2].URL)
}

func TestRankExtremeSNR(t *testing.T) {
	records := []catalog.Receiver{
		rx("neg", "-5", "0-1", "", "0", "1"),
		rx("huge", "9223372036854775807", "0-1", "", "0", "1"),
		rx("min", "-9223372036854775808", "0-1", "", "0", "1"),
		rx("mid", "20", "0-1", "", "0", "1"),
	}
	Rank(records, catalog.MetricAll)

	var got []string
	for _, r := range records {
		got = append(got, r.URL)
	}
	assert.Equal(t, []string{"huge", "mid", "neg", "min"}, got)
}

func TestHFMetric(t *testing.T) {
	records := []catalog.Receiver{
		rx("strong-all", "35,10", "0-1", "", "0", "1"),
		rx("strong-hf", "22,21", "0-1", "", "0", "1"),
	}
	got := seeded().Select(records, Query{MinSNR: 19, Metric: catalog.MetricHF, AnyCapacity: true})
	assert.Equal(t, []string{"strong-hf"}, got)
}

func TestQueryPredicatesOnlyWhatIsAsked(t *testing.T) {
	assert.Len(t, Query{}.Predicates(), 2)
	assert.Len(t, Query{AnyCapacity: true}.Predicates(), 1)
	assert.Len(t, ForBand(tokyo, airband, 5).Predicates(), 4)
}

func TestPickIsReproducibleWithFixedSource(t *testing.T) {
	var records []catalog.Receiver
	for i := range 8 {
		records = append(records, rx(fmt.Sprintf("rx%d", i), "30", "0-200000000", "(35.6, 139.7)", "0", "4"))
	}
	q := ForBand(tokyo, airband, 5)

	a := New(WithSource(rand.NewPCG(7, 7)))
	b := New(WithSource(rand.NewPCG(7, 7)))
	for range 10 {
		ra, rb := a.Pick(records, q), b.Pick(records, q)
		assert.Equal(t, ra, rb)
	}

	// Every pick comes from the top five.
	top := seeded().Select(records, q)
	for range 20 {
		url, ok := seeded().Pick(records, q).Get()
		require.True(t, ok)
		assert.Contains(t, top, url)
	}
}

func TestPickSpreadsAcrossShortlist(t *testing.T) {
	var records []catalog.Receiver
	for i := range 3 {
		records = append(records, rx(fmt.Sprintf("rx%d", i), "30", "0-200000000", "(35.6, 139.7)", "0", "4"))
	}
	e := seeded()
	seen := map[string]bool{}
	for range 100 {
		url, _ := e.Pick(records, ForBand(tokyo, airband, 3)).Get()
		seen[url] = true
	}
	assert.Len(t, seen, 3)
}

func TestFrequencyForUsesClock(t *testing.T) {
	region := registry.Region{DayFreq: 100, NightFreq: 200, UTCOffset: 9}
	noonTokyo := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	e := New(WithClock(func() time.Time { return noonTokyo }))
	assert.Equal(t, int64(100), e.FrequencyFor(region))
	assert.Equal(t, noonTokyo, e.Now())
}

func TestResult(t *testing.T) {
	url, ok := Found("http://x:8073").Get()
	assert.True(t, ok)
	assert.Equal(t, "http://x:8073", url)
	assert.Equal(t, "http://x:8073", Found("http://x:8073").Or(FallbackURL))
	assert.Equal(t, FallbackURL, Empty().Or(FallbackURL))
}

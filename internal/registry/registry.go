// Package registry holds the named geographic regions, frequency bands, and
// station bookmarks that drive receiver selection. Tables come from static
// configuration or from headerless CSV files.
package registry

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownRegion is returned when a region name has no entry.
var ErrUnknownRegion = errors.New("unknown region")

// Box is a geographic bounding box in decimal degrees.
type Box struct {
	South float64 `toml:"south" json:"south"`
	North float64 `toml:"north" json:"north"`
	West  float64 `toml:"west"  json:"west"`
	East  float64 `toml:"east"  json:"east"`
}

// Region is a named box with a day/night monitoring frequency pair and
// the local offset from UTC used to tell day from night.
type Region struct {
	Name      string  `toml:"name"       json:"name"`
	Box       Box     `toml:"box"        json:"box"`
	DayFreq   int64   `toml:"day_freq"   json:"day_freq"`   // Hz
	NightFreq int64   `toml:"night_freq" json:"night_freq"` // Hz
	UTCOffset float64 `toml:"utc_offset" json:"utc_offset"` // hours
}

// Daytime is the local [start, end) hour window that counts as day.
const (
	DayStartHour = 7
	DayEndHour   = 18
)

// LocalHour returns (offset + UTC hour of now) wrapped into [0, 24).
func LocalHour(offset float64, now time.Time) float64 {
	h := math.Mod(offset+float64(now.UTC().Hour()), 24)
	if h < 0 {
		h += 24
	}
	return h
}

// IsDay reports whether the region is in local daytime at now.
func (r Region) IsDay(now time.Time) bool {
	h := LocalHour(r.UTCOffset, now)
	return h >= DayStartHour && h < DayEndHour
}

// FrequencyAt returns the day or night frequency for the region at now.
func (r Region) FrequencyAt(now time.Time) int64 {
	if r.IsDay(now) {
		return r.DayFreq
	}
	return r.NightFreq
}

// Band is a named frequency range with the minimum SNR a receiver needs
// to be worth bookmarking for it.
type Band struct {
	Name   string `toml:"name"    json:"name"`
	MinSNR int    `toml:"min_snr" json:"min_snr"`
	Low    int64  `toml:"low"     json:"low"`  // Hz
	High   int64  `toml:"high"    json:"high"` // Hz
}

// Contains reports whether f lies within the band, edges included.
func (b Band) Contains(f int64) bool {
	return f >= b.Low && f <= b.High
}

// Bands is an ordered band table.
type Bands []Band

// ByFrequency returns the band containing f. When bands overlap the last
// matching entry in table order wins.
func (bs Bands) ByFrequency(f int64) (Band, bool) {
	for i := len(bs) - 1; i >= 0; i-- {
		if bs[i].Contains(f) {
			return bs[i], true
		}
	}
	return Band{}, false
}

// SDRType names the kind of receiver a station bookmark points at.
type SDRType string

const (
	SDRKiwi      SDRType = "kiwi"
	SDRWeb       SDRType = "web"
	SDRPhantom   SDRType = "phantom"
	SDROpenWebRX SDRType = "openwebrx"
)

// Passthrough reports whether bookmarks of this type keep their own URL
// instead of being resolved against the catalog.
func (t SDRType) Passthrough() bool {
	switch t {
	case SDRWeb, SDRPhantom, SDROpenWebRX:
		return true
	}
	return false
}

// Station is one stream bookmark: a broadcast to listen to, where, and how.
type Station struct {
	Description string  `json:"description"`
	Region      string  `json:"region"`
	URL         string  `json:"url"`
	Frequency   string  `json:"frequency"` // kHz, as written in the table
	Mode        string  `json:"mode"`
	SDRType     SDRType `json:"sdr_type"`
}

// Hz converts the station's kHz frequency to Hz.
func (s Station) Hz() (int64, error) {
	khz, err := strconv.ParseFloat(strings.TrimSpace(s.Frequency), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(khz * 1000)), nil
}

// Registry bundles the region, band, and station tables for one run.
type Registry struct {
	Regions  []Region
	Bands    Bands
	Stations []Station
}

// Region returns the region with the given name (case-insensitive).
func (r *Registry) Region(name string) (Region, error) {
	for _, reg := range r.Regions {
		if strings.EqualFold(reg.Name, name) {
			return reg, nil
		}
	}
	return Region{}, ErrUnknownRegion
}

// Band returns the band with the given name (case-insensitive).
func (r *Registry) Band(name string) (Band, bool) {
	for _, b := range r.Bands {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return Band{}, false
}

// RegionsNamed returns every region whose name matches exactly, in table order.
func (r *Registry) RegionsNamed(name string) []Region {
	var out []Region
	for _, reg := range r.Regions {
		if reg.Name == name {
			out = append(out, reg)
		}
	}
	return out
}

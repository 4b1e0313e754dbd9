// Package catalog reads the public KiwiSDR receiver list and turns each entry
// into a Receiver with parsed SNR, tunable span, position, and listener counts.
// Parsing is best effort: a field that cannot be read marks the receiver
// invalid for that field instead of failing the load.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Record is one raw catalog entry. Every value arrives as text.
type Record struct {
	Name     string `json:"name"`
	Loc      string `json:"loc"`
	URL      string `json:"url"`
	SNR      string `json:"snr"`
	Bands    string `json:"bands"`
	GPS      string `json:"gps"`
	Users    string `json:"users"`
	UsersMax string `json:"users_max"`
}

// Field identifies a parsed receiver attribute.
type Field uint8

const (
	FieldSNR Field = 1 << iota
	FieldBands
	FieldGPS
	FieldUsers
)

// Metric picks which SNR figure ranking and quality filters look at.
type Metric int

const (
	// MetricAll is the full-band SNR, the first value of the snr field.
	MetricAll Metric = iota
	// MetricHF is the HF SNR, the last value of the snr field.
	MetricHF
)

// SNR holds the signal-to-noise scores reported for a receiver.
type SNR struct {
	All int
	HF  int
}

// Value returns the score for the given metric.
func (s SNR) Value(m Metric) int {
	if m == MetricHF {
		return s.HF
	}
	return s.All
}

// Span is a tunable frequency range in hertz.
type Span struct {
	Low  int64
	High int64
}

// Point is a position in signed decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Receiver is a Record together with its parsed values.
type Receiver struct {
	Record

	SNR      SNR
	Bands    Span
	Position Point
	Users    float64
	UsersMax float64

	valid Field
}

// Has reports whether field f parsed cleanly.
func (r Receiver) Has(f Field) bool {
	return r.valid&f == f
}

// NewReceiver parses every field of rec. It never fails.
func NewReceiver(rec Record) Receiver {
	r := Receiver{Record: rec}

	if snr, err := ParseSNR(rec.SNR); err == nil {
		r.SNR = snr
		r.valid |= FieldSNR
	}
	if span, err := ParseSpan(rec.Bands); err == nil {
		r.Bands = span
		r.valid |= FieldBands
	}
	if pt, err := ParsePoint(rec.GPS); err == nil {
		r.Position = pt
		r.valid |= FieldGPS
	}
	users, errU := parseCount(rec.Users)
	usersMax, errM := parseCount(rec.UsersMax)
	if errU == nil && errM == nil {
		r.Users, r.UsersMax = users, usersMax
		r.valid |= FieldUsers
	}

	return r
}

// Receivers parses a batch of records, preserving order.
func Receivers(recs []Record) []Receiver {
	out := make([]Receiver, len(recs))
	for i, rec := range recs {
		out[i] = NewReceiver(rec)
	}
	return out
}

var errEmpty = errors.New("empty value")

// ParseSNR reads the snr field. A value like "1,234" is one number with a
// thousands separator. A value like "23,19" carries the full-band SNR first
// and the HF SNR last. A single number fills both.
func ParseSNR(s string) (SNR, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SNR{}, errEmpty
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if isThousandsGrouped(parts) {
		n, err := strconv.Atoi(strings.Join(parts, ""))
		if err != nil {
			return SNR{}, fmt.Errorf("snr %q: %w", s, err)
		}
		return SNR{All: n, HF: n}, nil
	}

	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return SNR{}, fmt.Errorf("snr %q: %w", s, err)
	}
	last, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return SNR{}, fmt.Errorf("snr %q: %w", s, err)
	}
	return SNR{All: first, HF: last}, nil
}

// isThousandsGrouped reports whether parts look like "1", "234", "567":
// a 1-3 digit head followed by groups of exactly three digits.
func isThousandsGrouped(parts []string) bool {
	if len(parts) < 2 {
		return len(parts) == 1
	}
	if len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// ParseSpan reads a "<low>-<high>" hertz range.
func ParseSpan(s string) (Span, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Span{}, fmt.Errorf("bands %q: missing '-'", s)
	}
	low, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return Span{}, fmt.Errorf("bands %q: %w", s, err)
	}
	high, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if err != nil {
		return Span{}, fmt.Errorf("bands %q: %w", s, err)
	}
	if low > high {
		return Span{}, fmt.Errorf("bands %q: low above high", s)
	}
	return Span{Low: low, High: high}, nil
}

// ParsePoint reads a coordinate pair such as "(35.68, 139.77)",
// "35.68N,139.77E" or "S33.9,E18.4".
func ParsePoint(s string) (Point, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	latText, lonText, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("gps %q: missing ','", s)
	}
	lat, err := parseDegrees(latText, 'N', 'S')
	if err != nil {
		return Point{}, fmt.Errorf("gps %q: latitude: %w", s, err)
	}
	lon, err := parseDegrees(lonText, 'E', 'W')
	if err != nil {
		return Point{}, fmt.Errorf("gps %q: longitude: %w", s, err)
	}
	if lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("gps %q: latitude out of range", s)
	}
	if lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("gps %q: longitude out of range", s)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

func parseDegrees(s string, pos, neg byte) (float64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, errEmpty
	}

	sign := 1.0
	hemisphere := false
	switch {
	case s[len(s)-1] == pos:
		s, hemisphere = s[:len(s)-1], true
	case s[len(s)-1] == neg:
		s, sign, hemisphere = s[:len(s)-1], -1, true
	case s[0] == pos:
		s, hemisphere = s[1:], true
	case s[0] == neg:
		s, sign, hemisphere = s[1:], -1, true
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if hemisphere && v < 0 {
		return 0, fmt.Errorf("signed value %q with hemisphere letter", s)
	}
	return sign * v, nil
}

func parseCount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	return strconv.ParseFloat(s, 64)
}

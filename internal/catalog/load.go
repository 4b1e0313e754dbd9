package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// ErrNoArray is returned when catalog data contains no JSON array.
var ErrNoArray = errors.New("catalog: no array found")

// trailingComma matches a comma before a closing bracket or brace. It runs
// over the raw text without tracking strings, so a value such as "A, }" loses
// its comma too.
var trailingComma = regexp.MustCompile(`,(\s*[\]}])`)

// Parse decodes catalog data. It accepts a plain JSON array or the published
// JavaScript form (`var kiwisdr_com = [ ... ];`), including trailing commas.
// Values may be strings or numbers; numbers are kept as their JSON text.
func Parse(data []byte) ([]Record, error) {
	start := bytes.IndexByte(data, '[')
	end := bytes.LastIndexByte(data, ']')
	if start < 0 || end < start {
		return nil, ErrNoArray
	}
	body := trailingComma.ReplaceAll(data[start:end+1], []byte("$1"))

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	recs := make([]Record, 0, len(raw))
	for _, entry := range raw {
		recs = append(recs, Record{
			Name:     text(entry["name"]),
			Loc:      text(entry["loc"]),
			URL:      text(entry["url"]),
			SNR:      text(entry["snr"]),
			Bands:    text(entry["bands"]),
			GPS:      text(entry["gps"]),
			Users:    text(entry["users"]),
			UsersMax: text(entry["users_max"]),
		})
	}
	return recs, nil
}

// text flattens a JSON scalar to its textual value.
func text(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// LoadFile reads and parses a catalog file from disk.
func LoadFile(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	recs, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

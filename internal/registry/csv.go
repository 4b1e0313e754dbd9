package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column layouts of the headerless registry tables.
const (
	regionColumns  = 8 // name,south,north,west,east,day_freq,night_freq,utc_offset
	bandColumns    = 4 // name,min_snr,low,high
	stationColumns = 6 // description,region,url,frequency,mode,sdrtype
)

// ReadRegions parses a region table.
func ReadRegions(r io.Reader) ([]Region, error) {
	var out []Region
	err := eachRow(r, regionColumns, func(line int, row []string) error {
		var (
			reg Region
			err error
		)
		reg.Name = row[0]
		coords := []*float64{&reg.Box.South, &reg.Box.North, &reg.Box.West, &reg.Box.East}
		for i, dst := range coords {
			if *dst, err = strconv.ParseFloat(row[1+i], 64); err != nil {
				return fmt.Errorf("line %d: column %d: %w", line, 2+i, err)
			}
		}
		if reg.DayFreq, err = parseHz(row[5]); err != nil {
			return fmt.Errorf("line %d: day frequency: %w", line, err)
		}
		if reg.NightFreq, err = parseHz(row[6]); err != nil {
			return fmt.Errorf("line %d: night frequency: %w", line, err)
		}
		if reg.UTCOffset, err = strconv.ParseFloat(row[7], 64); err != nil {
			return fmt.Errorf("line %d: utc offset: %w", line, err)
		}
		out = append(out, reg)
		return nil
	})
	return out, err
}

// ReadBands parses a band table. Every band must have low below high.
func ReadBands(r io.Reader) (Bands, error) {
	var out Bands
	err := eachRow(r, bandColumns, func(line int, row []string) error {
		var (
			b   Band
			err error
		)
		b.Name = row[0]
		if b.MinSNR, err = strconv.Atoi(row[1]); err != nil {
			return fmt.Errorf("line %d: snr limit: %w", line, err)
		}
		if b.Low, err = parseHz(row[2]); err != nil {
			return fmt.Errorf("line %d: low frequency: %w", line, err)
		}
		if b.High, err = parseHz(row[3]); err != nil {
			return fmt.Errorf("line %d: high frequency: %w", line, err)
		}
		if b.Low >= b.High {
			return fmt.Errorf("line %d: band %q: low %d not below high %d", line, b.Name, b.Low, b.High)
		}
		out = append(out, b)
		return nil
	})
	return out, err
}

// ReadStations parses a station bookmark table.
func ReadStations(r io.Reader) ([]Station, error) {
	var out []Station
	err := eachRow(r, stationColumns, func(line int, row []string) error {
		if _, err := strconv.ParseFloat(row[3], 64); err != nil {
			return fmt.Errorf("line %d: frequency: %w", line, err)
		}
		out = append(out, Station{
			Description: row[0],
			Region:      row[1],
			URL:         row[2],
			Frequency:   row[3],
			Mode:        row[4],
			SDRType:     SDRType(strings.ToLower(row[5])),
		})
		return nil
	})
	return out, err
}

// eachRow feeds trimmed CSV rows with exactly n fields to fn. Blank lines and
// lines starting with '#' are skipped.
func eachRow(r io.Reader, n int, fn func(line int, row []string) error) error {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := cr.FieldPos(0)
		if len(row) != n {
			return fmt.Errorf("line %d: want %d fields, got %d", line, n, len(row))
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		if err := fn(line, row); err != nil {
			return err
		}
	}
}

// parseHz accepts integer hertz, tolerating a ".0" float rendering.
func parseHz(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// LoadFiles reads whichever of the three tables have a path. Empty paths
// leave the corresponding table empty.
func LoadFiles(regionsPath, bandsPath, stationsPath string) (*Registry, error) {
	reg := &Registry{}

	if regionsPath != "" {
		regions, err := readFile(regionsPath, ReadRegions)
		if err != nil {
			return nil, err
		}
		reg.Regions = regions
	}
	if bandsPath != "" {
		bands, err := readFile(bandsPath, ReadBands)
		if err != nil {
			return nil, err
		}
		reg.Bands = bands
	}
	if stationsPath != "" {
		stations, err := readFile(stationsPath, ReadStations)
		if err != nil {
			return nil, err
		}
		reg.Stations = stations
	}

	return reg, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("registry: %w", err)
	}
	defer f.Close()

	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("registry %s: %w", path, err)
	}
	return v, nil
}

// Package fips maps FIPS geography codes to human-readable county and
// place names. The table ships with the binary; the upstream source is the
// Census Bureau's code listing for Michigan.
package fips

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

//go:embed mi_fips.csv
var tableFS embed.FS

// Fallback names for codes the table does not carry
const (
	UnknownCounty = "Unknown County"
	UnknownPlace  = "Unknown City/Town"
)

type key struct {
	state string
	code  string
}

// Table resolves county and place FIPS codes to names
type Table struct {
	counties map[key]string
	places   map[key]string
}

// Load parses the embedded lookup table
func Load() (*Table, error) {
	f, err := tableFS.Open("mi_fips.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to open FIPS table: %w", err)
	}
	defer f.Close()

	return parse(f)
}

// parse reads the CSV asset: state, county code, county name, place code,
// place name. County and place pairs are indexed independently; rows may
// leave the place columns empty.
func parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read FIPS table header: %w", err)
	}
	if len(header) != 5 || header[0] != "state" {
		return nil, fmt.Errorf("unexpected FIPS table header: %v", header)
	}

	table := &Table{
		counties: make(map[key]string),
		places:   make(map[key]string),
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read FIPS table line %d: %w", line, err)
		}

		state := strings.TrimSpace(record[0])
		countyCode := strings.TrimSpace(record[1])
		countyName := strings.TrimSpace(record[2])
		placeCode := strings.TrimSpace(record[3])
		placeName := strings.TrimSpace(record[4])

		if countyCode != "" && countyName != "" {
			table.counties[key{state, countyCode}] = countyName
		}
		if placeCode != "" && placeName != "" {
			table.places[key{state, placeCode}] = placeName
		}
	}

	return table, nil
}

// CountyName resolves a county FIPS code within a state
func (t *Table) CountyName(stateFIPS, countyFIPS string) string {
	if name, ok := t.counties[key{stateFIPS, normalizeCode(countyFIPS, 3)}]; ok {
		return name
	}
	return UnknownCounty
}

// PlaceName resolves a place FIPS code within a state
func (t *Table) PlaceName(stateFIPS, placeFIPS string) string {
	if name, ok := t.places[key{stateFIPS, normalizeCode(placeFIPS, 5)}]; ok {
		return name
	}
	return UnknownPlace
}

// Counties returns the number of distinct county codes in the table
func (t *Table) Counties() int {
	return len(t.counties)
}

// Places returns the number of distinct place codes in the table
func (t *Table) Places() int {
	return len(t.places)
}

// normalizeCode left-pads a code with zeros to its canonical width, so
// "81" and "081" resolve to the same county.
func normalizeCode(code string, width int) string {
	code = strings.TrimSpace(code)
	for len(code) > 0 && len(code) < width {
		code = "0" + code
	}
	return code
}

package providers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Required address fields every record must carry before geocoding
const (
	FieldAddressLine1 = "AddressLine1"
	FieldCity         = "City"
	FieldZipCode      = "ZipCode"
)

var requiredFields = []string{FieldAddressLine1, FieldCity, FieldZipCode}

var multiSpace = regexp.MustCompile(` +`)

// Record is one provider location as returned by the directory API. The
// upstream schema is wide and drifts, so the raw field map is kept intact
// and only the address fields get typed accessors.
type Record map[string]interface{}

// stringField returns a field coerced to string, empty when absent
func (r Record) stringField(name string) string {
	v, ok := r[name]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// AddressLine1 returns the street address line
func (r Record) AddressLine1() string {
	return r.stringField(FieldAddressLine1)
}

// City returns the city name
func (r Record) City() string {
	return r.stringField(FieldCity)
}

// ZipCode returns the postal code
func (r Record) ZipCode() string {
	return r.stringField(FieldZipCode)
}

// FullAddress assembles the geocodable postal address:
// "<line1>, <city>, <state name> <zip>" with repeated whitespace squeezed.
func (r Record) FullAddress(stateName string) string {
	addr := fmt.Sprintf("%s, %s, %s %s", r.AddressLine1(), r.City(), stateName, r.ZipCode())
	return CleanAddress(addr)
}

// CleanAddress trims the address and collapses runs of spaces
func CleanAddress(address string) string {
	return multiSpace.ReplaceAllString(strings.TrimSpace(address), " ")
}

// ValidateRecords checks that every required address field appears in the
// record set. The directory returns a uniform schema, so checking the
// first record is checking them all; an empty set is valid.
func ValidateRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	missing := make([]string, 0)
	for _, field := range requiredFields {
		if _, ok := records[0][field]; !ok {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Columns returns the union of field names across records in stable order,
// required address fields first, the rest alphabetical. This fixes the CSV
// header for an upstream schema that carries no column ordering.
func Columns(records []Record) []string {
	seen := make(map[string]bool, len(requiredFields))
	columns := make([]string, 0, len(requiredFields))
	for _, f := range requiredFields {
		seen[f] = true
		columns = append(columns, f)
	}

	extra := make([]string, 0)
	for _, record := range records {
		for name := range record {
			if !seen[name] {
				seen[name] = true
				extra = append(extra, name)
			}
		}
	}
	sort.Strings(extra)

	return append(columns, extra...)
}

package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123 Main St", "123 Main St"},
		{"  123 Main St  ", "123 Main St"},
		{"123   Main    St", "123 Main St"},
		{" 123  Main St,  Detroit ", "123 Main St, Detroit"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanAddress(tt.input), "input %q", tt.input)
	}
}

func TestFullAddress(t *testing.T) {
	record := Record{
		"AddressLine1": "123  Main St",
		"City":         "Lansing",
		"ZipCode":      "48901",
	}

	assert.Equal(t, "123 Main St, Lansing, Michigan 48901", record.FullAddress("Michigan"))
}

func TestFullAddressNumericZip(t *testing.T) {
	// JSON numbers decode to float64; the accessor must still render them
	record := Record{
		"AddressLine1": "9 Oak Ave",
		"City":         "Flint",
		"ZipCode":      float64(48502),
	}

	assert.Equal(t, "9 Oak Ave, Flint, Michigan 48502", record.FullAddress("Michigan"))
}

func TestValidateRecords(t *testing.T) {
	valid := []Record{{
		"AddressLine1": "1 Elm St",
		"City":         "Troy",
		"ZipCode":      "48083",
		"Name":         "Happy Kids",
	}}
	assert.NoError(t, ValidateRecords(valid))

	assert.NoError(t, ValidateRecords(nil))

	missing := []Record{{
		"AddressLine1": "1 Elm St",
		"Name":         "Happy Kids",
	}}
	err := ValidateRecords(missing)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "City")
	assert.Contains(t, err.Error(), "ZipCode")
}

func TestColumns(t *testing.T) {
	records := []Record{
		{"AddressLine1": "a", "City": "b", "ZipCode": "c", "Name": "n", "Phone": "p"},
		{"AddressLine1": "a", "City": "b", "ZipCode": "c", "County": "x"},
	}

	columns := Columns(records)

	// Required fields lead, extras follow alphabetically
	assert.Equal(t, []string{"AddressLine1", "City", "ZipCode", "County", "Name", "Phone"}, columns)
}

func TestStringFieldMissing(t *testing.T) {
	record := Record{"AddressLine1": nil}
	assert.Equal(t, "", record.AddressLine1())
	assert.Equal(t, "", record.City())
}

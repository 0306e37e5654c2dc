// Package output renders the enriched datasets as timestamped CSV files.
// Files are written to a temp file first and renamed into place, so a
// crashed run never leaves a half-written CSV behind.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/logging"
	"provider-lake/internal/geocode"
	"provider-lake/internal/providers"
)

// Extra columns appended to the provider export after the raw fields
const (
	ColumnFullAddress = "Full Address"
	ColumnLatitude    = "Latitude"
	ColumnLongitude   = "Longitude"
)

// WriteOptions names the output file: <Prefix>_<YYYYMMDD_HHMMSS>.csv under
// Directory. A zero Timestamp means now.
type WriteOptions struct {
	Directory string
	Prefix    string
	Timestamp time.Time
}

func (o WriteOptions) path() string {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	name := fmt.Sprintf("%s_%s.csv", o.Prefix, ts.Format("20060102_150405"))
	return filepath.Join(o.Directory, name)
}

// CensusRecord is one county's child population after the FIPS name join
type CensusRecord struct {
	County        string
	City          string
	Children0to3  int
	Children3to5  int
	Children6to11 int
}

// Writer produces the CSV exports
type Writer struct {
	logger logging.Logger
}

// NewWriter creates a CSV writer
func NewWriter() *Writer {
	return &Writer{
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "output")),
	}
}

// WriteProviders exports the provider records with their geocoding results
// appended. Records and results align by index; unresolved addresses get
// empty coordinate cells. Returns the path of the written file.
func (w *Writer) WriteProviders(records []providers.Record, results []geocode.Result, opts WriteOptions) (string, error) {
	if len(records) != len(results) {
		return "", errors.ValidationError(
			fmt.Sprintf("record/result count mismatch: %d records, %d results", len(records), len(results)))
	}

	columns := providers.Columns(records)
	header := append(append([]string{}, columns...), ColumnFullAddress, ColumnLatitude, ColumnLongitude)

	rows := make([][]string, 0, len(records))
	for i, record := range records {
		row := make([]string, 0, len(header))
		for _, column := range columns {
			row = append(row, cellString(record[column]))
		}
		row = append(row, results[i].Address)
		if loc := results[i].Location; loc != nil {
			row = append(row,
				strconv.FormatFloat(loc.Lat, 'f', -1, 64),
				strconv.FormatFloat(loc.Lng, 'f', -1, 64),
			)
		} else {
			row = append(row, "", "")
		}
		rows = append(rows, row)
	}

	path, err := w.writeFile(opts, header, rows)
	if err != nil {
		return "", err
	}

	w.logger.Info("Wrote provider export",
		logging.String("path", path),
		logging.Int("rows", len(rows)),
	)
	return path, nil
}

// WriteCensus exports the joined county population table. Returns the path
// of the written file.
func (w *Writer) WriteCensus(records []CensusRecord, opts WriteOptions) (string, error) {
	header := []string{"county", "city", "children_0_3", "children_3_5", "children_6_11"}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.County,
			record.City,
			strconv.Itoa(record.Children0to3),
			strconv.Itoa(record.Children3to5),
			strconv.Itoa(record.Children6to11),
		})
	}

	path, err := w.writeFile(opts, header, rows)
	if err != nil {
		return "", err
	}

	w.logger.Info("Wrote census export",
		logging.String("path", path),
		logging.Int("rows", len(rows)),
	)
	return path, nil
}

// writeFile writes header and rows to a temp file in the target directory
// and renames it over the final path
func (w *Writer) writeFile(opts WriteOptions, header []string, rows [][]string) (string, error) {
	if opts.Prefix == "" {
		return "", errors.ConfigError("output prefix is required")
	}

	dir := opts.Directory
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.InternalError("failed to create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, opts.Prefix+"-*.csv.tmp")
	if err != nil {
		return "", errors.InternalError("failed to create output file", err)
	}
	tmpPath := tmp.Name()

	if err := writeRecords(tmp, header, rows); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", errors.InternalError("failed to write output file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errors.InternalError("failed to close output file", err)
	}

	path := opts.path()
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", errors.InternalError("failed to finalize output file", err)
	}

	return path, nil
}

func writeRecords(f *os.File, header []string, rows [][]string) error {
	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// cellString renders a raw provider field for CSV. Nil fields render empty;
// integral floats drop the JSON decimal point.
func cellString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

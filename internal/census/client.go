// Package census pulls ACS child-population statistics for every county of
// a state and folds the raw age variables into reporting buckets.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/httpclient"
	"provider-lake/internal/common/logging"
)

// ageGroup maps a reporting bucket to the ACS variables it sums.
// B01001_0xxE are male counts, B01001_0(xx+24)E the female counterparts.
type ageGroup struct {
	Label     string
	Variables []string
}

// AgeGroups defines the three reporting buckets in query order. The column
// layout of every response row follows from this ordering.
var AgeGroups = []ageGroup{
	{Label: "0-3", Variables: []string{"B01001_003E", "B01001_027E"}},
	{Label: "3-5", Variables: []string{"B01001_004E", "B01001_028E"}},
	{Label: "6-11", Variables: []string{"B01001_005E", "B01001_006E", "B01001_029E", "B01001_030E"}},
}

// Row is one county's child population after bucket summation. Malformed
// upstream rows decode to a zeroed row with empty FIPS codes so the batch
// keeps going; the name join downstream renders them as Unknown.
type Row struct {
	CountyFIPS    string
	PlaceFIPS     string
	Children0to3  int
	Children3to5  int
	Children6to11 int
	Malformed     bool
}

// Config holds census API settings
type Config struct {
	BaseURL   string
	APIKey    string
	StateFIPS string
}

// Client queries the ACS API
type Client struct {
	config Config
	http   *httpclient.Wrapper
	logger logging.Logger
}

// NewClient creates a census client
func NewClient(config Config, wrapper *httpclient.Wrapper) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.ConfigError("census base URL is required")
	}
	if config.APIKey == "" {
		return nil, errors.ConfigError("census API key is required")
	}
	if config.StateFIPS == "" {
		return nil, errors.ConfigError("state FIPS code is required")
	}
	if wrapper == nil {
		return nil, errors.ConfigError("HTTP client wrapper is required")
	}

	return &Client{
		config: config,
		http:   wrapper,
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "census")),
	}, nil
}

// variableList returns the flat ACS variable list in bucket order
func variableList() []string {
	vars := make([]string, 0, 8)
	for _, group := range AgeGroups {
		vars = append(vars, group.Variables...)
	}
	return vars
}

// FetchChildPopulation retrieves one row per county of the configured
// state. The first response row is a header and is skipped.
func (c *Client) FetchChildPopulation(ctx context.Context) ([]Row, error) {
	params := url.Values{}
	params.Set("get", strings.Join(variableList(), ","))
	params.Set("for", "county:*")
	params.Set("in", "state:"+c.config.StateFIPS)
	params.Set("key", c.config.APIKey)

	requestURL := c.config.BaseURL + "?" + params.Encode()

	c.logger.Info("Fetching census data for all counties",
		logging.String("state_fips", c.config.StateFIPS),
	)

	resp, err := c.http.Get(ctx, requestURL, nil)
	if err != nil {
		return nil, err
	}

	var rawRows [][]interface{}
	if err := json.Unmarshal(resp.RawBody, &rawRows); err != nil {
		return nil, errors.ParseError("failed to decode census response", err)
	}

	if len(rawRows) < 1 {
		return nil, errors.ParseError("census response contained no rows", nil)
	}

	// Skip the header row
	rows := make([]Row, 0, len(rawRows)-1)
	for i, raw := range rawRows[1:] {
		row, err := decodeRow(raw)
		if err != nil {
			c.logger.Warn("Malformed census row",
				logging.Int("row", i+1),
				logging.NamedError("reason", err),
			)
		}
		rows = append(rows, row)
	}

	c.logger.Info("Fetched census rows", logging.Int("count", len(rows)))

	return rows, nil
}

// decodeRow folds one raw census row into bucket counts. The row layout is
// the eight requested variables in query order followed by geography
// columns; the FIPS codes sit in the last two columns.
func decodeRow(raw []interface{}) (Row, error) {
	varCount := len(variableList())
	if len(raw) < varCount+2 {
		return Row{Malformed: true}, fmt.Errorf("expected at least %d columns, got %d", varCount+2, len(raw))
	}

	counts := make([]int, varCount)
	for i := 0; i < varCount; i++ {
		n, err := toInt(raw[i])
		if err != nil {
			return Row{Malformed: true}, fmt.Errorf("column %d: %w", i, err)
		}
		counts[i] = n
	}

	row := Row{
		CountyFIPS: toString(raw[len(raw)-2]),
		PlaceFIPS:  toString(raw[len(raw)-1]),
	}

	offset := 0
	sums := make([]int, len(AgeGroups))
	for g, group := range AgeGroups {
		for range group.Variables {
			sums[g] += counts[offset]
			offset++
		}
	}
	row.Children0to3 = sums[0]
	row.Children3to5 = sums[1]
	row.Children6to11 = sums[2]

	return row, nil
}

// toInt coerces a census cell to an integer. Cells arrive as strings but
// occasionally as bare numbers.
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	case float64:
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("null cell")
	default:
		return 0, fmt.Errorf("unsupported cell type %T", v)
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

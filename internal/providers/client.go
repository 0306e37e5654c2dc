// Package providers fetches provider-location records from the
// OAuth-protected directory API.
package providers

import (
	"context"
	"encoding/json"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/httpclient"
	"provider-lake/internal/common/logging"
)

// Client pulls provider records from the directory
type Client struct {
	dataURL string
	http    *httpclient.Wrapper
	logger  logging.Logger
}

// NewClient creates a directory client. The wrapper is expected to carry
// the token source for the directory's OAuth endpoint.
func NewClient(dataURL string, wrapper *httpclient.Wrapper) (*Client, error) {
	if dataURL == "" {
		return nil, errors.ConfigError("provider data URL is required")
	}
	if wrapper == nil {
		return nil, errors.ConfigError("HTTP client wrapper is required")
	}

	return &Client{
		dataURL: dataURL,
		http:    wrapper,
		logger:  logging.GetGlobalLogger().WithFields(logging.String("component", "providers")),
	}, nil
}

// Fetch retrieves all provider records. The directory wraps its rows in a
// "value" array; a payload without that key is an error.
func (c *Client) Fetch(ctx context.Context) ([]Record, error) {
	resp, err := c.http.Get(ctx, c.dataURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.RawBody, &raw); err != nil {
		return nil, errors.ParseError("failed to decode provider payload", err)
	}

	valueRaw, ok := raw["value"]
	if !ok {
		return nil, errors.ParseError("'value' key not found in provider payload", nil)
	}

	var records []Record
	if err := json.Unmarshal(valueRaw, &records); err != nil {
		return nil, errors.ParseError("failed to decode provider records", err)
	}

	if err := ValidateRecords(records); err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	c.logger.Info("Fetched provider records", logging.Int("count", len(records)))

	return records, nil
}

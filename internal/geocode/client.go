// Package geocode resolves postal addresses to coordinates through the
// Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/httpclient"
	"provider-lake/internal/common/logging"
	"provider-lake/internal/common/utils"
)

// DefaultEndpoint is the Google Geocoding API endpoint
const DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// Location is a geocoded coordinate pair
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// geocodeResponse is the subset of the Google response we read
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location Location `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// ClientConfig holds geocoding client settings
type ClientConfig struct {
	// APIKey is the Google Maps API key
	APIKey string

	// Endpoint overrides the API endpoint (tests)
	Endpoint string

	// Retries is the fixed attempt count per address
	Retries int

	// RetryDelay is the fixed pause between attempts
	RetryDelay time.Duration
}

// Client geocodes single addresses with a fixed retry loop. Every failure
// mode (transport error, non-2xx, non-OK status, empty results) is retried
// the same bounded number of times; there is no backoff policy.
type Client struct {
	config ClientConfig
	http   *httpclient.Wrapper
	logger logging.Logger
}

// NewClient creates a geocoding client
func NewClient(config ClientConfig, wrapper *httpclient.Wrapper) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.ConfigError("geocoding API key is required")
	}
	if wrapper == nil {
		return nil, errors.ConfigError("HTTP client wrapper is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Retries < 1 {
		config.Retries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	// The fixed loop below owns all retrying; the wrapper must not add
	// its own backoff attempts on top.
	wrapper.WithRetryConfig(&httpclient.RetryConfig{MaxAttempts: 1})

	return &Client{
		config: config,
		http:   wrapper,
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "geocode")),
	}, nil
}

// Geocode resolves one address. Returns nil and an error when the address
// cannot be resolved within the fixed attempt budget.
func (c *Client) Geocode(ctx context.Context, address string) (*Location, error) {
	requestURL := fmt.Sprintf("%s?address=%s&key=%s",
		c.config.Endpoint, url.QueryEscape(address), url.QueryEscape(c.config.APIKey))

	var location *Location

	err := utils.Retry(ctx, c.config.Retries, c.config.RetryDelay, func() error {
		loc, err := c.geocodeOnce(ctx, requestURL)
		if err != nil {
			c.logger.Warn("Failed to geocode address",
				logging.String("address", address),
				logging.NamedError("reason", err),
			)
			return err
		}
		location = loc
		return nil
	})
	if err != nil {
		return nil, errors.GeocodeError(fmt.Sprintf("geocoding %q failed", address), "").
			WithContext("attempts", c.config.Retries)
	}

	c.logger.Info("Geocoded address",
		logging.String("address", address),
		logging.Float64("lat", location.Lat),
		logging.Float64("lng", location.Lng),
	)

	return location, nil
}

// geocodeOnce performs a single geocoding attempt
func (c *Client) geocodeOnce(ctx context.Context, requestURL string) (*Location, error) {
	resp, err := c.http.Request(ctx, &httpclient.RequestOptions{
		Method: "GET",
		URL:    requestURL,
	})
	if err != nil {
		return nil, err
	}

	var decoded geocodeResponse
	if err := json.Unmarshal(resp.RawBody, &decoded); err != nil {
		return nil, errors.ParseError("failed to decode geocoding response", err)
	}

	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return nil, errors.GeocodeError("no result", decoded.Status)
	}

	loc := decoded.Results[0].Geometry.Location
	return &loc, nil
}

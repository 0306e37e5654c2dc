// Package config provides configuration management for the provider data
// pipeline. It handles loading configuration from environment variables with
// sensible defaults and validates the configuration so a run fails fast on a
// broken environment instead of halfway through a batch.
//
// Environment Variables:
//
// Provider Directory (OAuth password grant):
//   - GSQ_TOKEN_URL: OAuth token endpoint (required)
//   - GSQ_DATA_URL: Provider locations endpoint (required)
//   - GSQ_USERNAME: Directory account username (required)
//   - GSQ_PASSWORD: Directory account password (required)
//
// Geocoding:
//   - GMAP_API_KEY: Google Maps Geocoding API key (required)
//   - GEOCODE_WORKERS: Concurrent geocoding workers (default: 10)
//   - GEOCODE_RETRIES: Attempts per address (default: 3)
//   - GEOCODE_RETRY_DELAY: Pause between attempts (default: 1s)
//   - GEOCODE_RATE_LIMIT: Geocoding requests per second, 0 disables (default: 25)
//
// Census:
//   - CENSUS_URL: ACS 5-year estimates endpoint (default: 2023 vintage)
//   - CENSUS_API_KEY: Census API key (required)
//   - STATE_FIPS: Two-digit state FIPS code (default: 26)
//   - STATE_NAME: State name used in geocoded addresses (default: Michigan)
//
// Pipeline:
//   - HTTP_TIMEOUT: Timeout for each outbound request (default: 30s)
//   - OUTPUT_DIR: Directory for CSV exports (default: .)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path, empty logs to stdout
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DefaultCensusURL is the ACS 5-year estimates endpoint the pipeline was
// built against
const DefaultCensusURL = "https://api.census.gov/data/2023/acs/acs5"

// Config holds all configuration values for the pipeline. All fields
// correspond to environment variables that can be set to override the
// default values.
type Config struct {
	// Provider directory credentials
	TokenURL string // OAuth token endpoint
	DataURL  string // Provider locations endpoint
	Username string // Directory account username
	Password string // Directory account password

	// Geocoding settings
	GeocodeAPIKey    string        // Google Maps Geocoding API key
	GeocodeWorkers   int           // Concurrent geocoding workers
	GeocodeRetries   int           // Attempts per address
	GeocodeDelay     time.Duration // Pause between attempts
	GeocodeRateLimit float64       // Requests per second, 0 disables limiting

	// Census settings
	CensusURL    string // ACS estimates endpoint
	CensusAPIKey string // Census API key
	StateFIPS    string // Two-digit state FIPS code
	StateName    string // State name for geocoded addresses

	// Pipeline settings
	HTTPTimeout time.Duration // Timeout for each outbound request
	OutputDir   string        // Directory for CSV exports
	LogLevel    string        // Logging level (debug, info, warn, error)
	LogFile     string        // Log file path, empty logs to stdout
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on
// the returned Config before use.
func Load() *Config {
	return &Config{
		TokenURL: getEnv("GSQ_TOKEN_URL", ""),
		DataURL:  getEnv("GSQ_DATA_URL", ""),
		Username: getEnv("GSQ_USERNAME", ""),
		Password: getEnv("GSQ_PASSWORD", ""),

		GeocodeAPIKey:    getEnv("GMAP_API_KEY", ""),
		GeocodeWorkers:   getIntEnv("GEOCODE_WORKERS", 10),
		GeocodeRetries:   getIntEnv("GEOCODE_RETRIES", 3),
		GeocodeDelay:     getDurationEnv("GEOCODE_RETRY_DELAY", time.Second),
		GeocodeRateLimit: getFloatEnv("GEOCODE_RATE_LIMIT", 25),

		CensusURL:    getEnv("CENSUS_URL", DefaultCensusURL),
		CensusAPIKey: getEnv("CENSUS_API_KEY", ""),
		StateFIPS:    getEnv("STATE_FIPS", "26"),
		StateName:    getEnv("STATE_NAME", "Michigan"),

		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		OutputDir:   getEnv("OUTPUT_DIR", "."),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value
// if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable or returns a default
// value if not set or unparsable
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getFloatEnv retrieves a float environment variable or returns a default
// value if not set or unparsable
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable or returns a
// default value if not set or unparsable
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
//
// This method checks:
//   - Required credentials and endpoints
//   - URL syntax on the endpoints
//   - Positive worker, retry, and timeout values
//   - The state FIPS code format
//
// Returns a descriptive error if validation fails, nil if the configuration
// is valid.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"GSQ_TOKEN_URL", c.TokenURL},
		{"GSQ_DATA_URL", c.DataURL},
		{"GSQ_USERNAME", c.Username},
		{"GSQ_PASSWORD", c.Password},
		{"GMAP_API_KEY", c.GeocodeAPIKey},
		{"CENSUS_API_KEY", c.CensusAPIKey},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s environment variable is required", field.name)
		}
	}

	for _, endpoint := range []struct {
		name  string
		value string
	}{
		{"GSQ_TOKEN_URL", c.TokenURL},
		{"GSQ_DATA_URL", c.DataURL},
		{"CENSUS_URL", c.CensusURL},
	} {
		parsed, err := url.Parse(endpoint.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", endpoint.name)
		}
	}

	if c.GeocodeWorkers < 1 {
		return fmt.Errorf("GEOCODE_WORKERS must be a positive number")
	}
	if c.GeocodeRetries < 1 {
		return fmt.Errorf("GEOCODE_RETRIES must be a positive number")
	}
	if c.GeocodeDelay < 0 {
		return fmt.Errorf("GEOCODE_RETRY_DELAY must not be negative")
	}
	if c.GeocodeRateLimit < 0 {
		return fmt.Errorf("GEOCODE_RATE_LIMIT must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be a positive duration")
	}

	if len(c.StateFIPS) != 2 {
		return fmt.Errorf("STATE_FIPS must be a two-digit FIPS code")
	}
	if _, err := strconv.Atoi(c.StateFIPS); err != nil {
		return fmt.Errorf("STATE_FIPS must be a two-digit FIPS code")
	}
	if c.StateName == "" {
		return fmt.Errorf("STATE_NAME must not be empty")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}

	return nil
}

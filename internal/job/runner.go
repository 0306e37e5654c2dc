// Package job orchestrates the enrichment pipeline: fetch provider
// locations, geocode their addresses, pull census child-population counts,
// join county and place names, and export both datasets as CSV.
package job

import (
	"context"
	"time"

	"provider-lake/internal/auth"
	"provider-lake/internal/census"
	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/httpclient"
	"provider-lake/internal/common/logging"
	"provider-lake/internal/common/ratelimit"
	"provider-lake/internal/common/utils"
	"provider-lake/internal/config"
	"provider-lake/internal/fips"
	"provider-lake/internal/geocode"
	"provider-lake/internal/output"
	"provider-lake/internal/providers"
)

// Stage names in execution order
const (
	StageFetchProviders = "fetch-providers"
	StageGeocode        = "geocode"
	StageFetchCensus    = "fetch-census"
	StageJoinCensus     = "join-census"
	StageWriteOutput    = "write-output"
)

// Output file prefixes
const (
	providersPrefix = "processed_providers"
	censusPrefix    = "processed_census"
)

// StageResult records the outcome of one pipeline stage
type StageResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Result summarizes a completed run
type Result struct {
	RunID         string
	ProviderCount int
	GeocodedCount int
	CensusCount   int
	ProvidersPath string
	CensusPath    string
	Stages        []StageResult
}

// Runner wires the pipeline together from configuration and executes its
// stages in order. A Runner is single-use; build a new one per run.
type Runner struct {
	cfg    *config.Config
	logger logging.Logger

	// geocodeEndpoint overrides the Google endpoint (tests)
	geocodeEndpoint string
}

// NewRunner creates a runner for the given configuration
func NewRunner(cfg *config.Config) (*Runner, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError(err.Error())
	}

	return &Runner{
		cfg:    cfg,
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "job")),
	}, nil
}

// Run executes the pipeline. Any stage error aborts the run; individual
// geocoding misses and malformed census rows do not.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: utils.GenerateRunID()}

	// The run id rides on the context so every logger derived from it,
	// here and in the stages, tags its lines with the run.
	ctx = context.WithValue(ctx, logging.RunIDKey, result.RunID)
	logger := r.logger.WithContext(ctx)

	logger.Info("Pipeline run starting")
	started := time.Now()

	providersClient, pool, censusClient, err := r.buildClients()
	if err != nil {
		return nil, err
	}

	table, err := fips.Load()
	if err != nil {
		return nil, err
	}

	// Output timestamps come from run start so both exports share a name.
	timestamp := time.Now()
	writer := output.NewWriter()

	var (
		records        []providers.Record
		geocodeResults []geocode.Result
		censusRows     []census.Row
		censusRecords  []output.CensusRecord
	)

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageFetchProviders, func(ctx context.Context) error {
			records, err = providersClient.Fetch(ctx)
			result.ProviderCount = len(records)
			return err
		}},
		{StageGeocode, func(ctx context.Context) error {
			addresses := make([]string, len(records))
			for i, record := range records {
				addresses[i] = record.FullAddress(r.cfg.StateName)
			}
			geocodeResults, err = pool.Run(ctx, addresses)
			result.GeocodedCount = countGeocoded(geocodeResults)
			return err
		}},
		{StageFetchCensus, func(ctx context.Context) error {
			censusRows, err = censusClient.FetchChildPopulation(ctx)
			result.CensusCount = len(censusRows)
			return err
		}},
		{StageJoinCensus, func(ctx context.Context) error {
			censusRecords = joinCensus(censusRows, table, r.cfg.StateFIPS)
			return nil
		}},
		{StageWriteOutput, func(ctx context.Context) error {
			result.ProvidersPath, err = writer.WriteProviders(records, geocodeResults, output.WriteOptions{
				Directory: r.cfg.OutputDir,
				Prefix:    providersPrefix,
				Timestamp: timestamp,
			})
			if err != nil {
				return err
			}
			result.CensusPath, err = writer.WriteCensus(censusRecords, output.WriteOptions{
				Directory: r.cfg.OutputDir,
				Prefix:    censusPrefix,
				Timestamp: timestamp,
			})
			return err
		}},
	}

	for _, stage := range stages {
		if err := r.runStage(ctx, result, stage.name, stage.fn); err != nil {
			return nil, err
		}
	}

	logger.Info("Pipeline run complete",
		logging.Duration("duration", time.Since(started)),
		logging.Int("providers", result.ProviderCount),
		logging.Int("geocoded", result.GeocodedCount),
		logging.Int("census_rows", result.CensusCount),
		logging.String("providers_path", result.ProvidersPath),
		logging.String("census_path", result.CensusPath),
	)

	return result, nil
}

// runStage times one stage, records its result, and enriches its error with
// the stage name. The stage name joins the run id on the context passed to fn.
func (r *Runner) runStage(ctx context.Context, result *Result, name string, fn func(context.Context) error) error {
	ctx = context.WithValue(ctx, logging.StageKey, name)
	stageLogger := r.logger.WithContext(ctx)
	stageLogger.Info("Stage starting")

	started := time.Now()
	err := fn(ctx)
	duration := time.Since(started)

	result.Stages = append(result.Stages, StageResult{
		Name:     name,
		Duration: duration,
		Err:      err,
	})

	if err != nil {
		stageLogger.Error("Stage failed", err, logging.Duration("duration", duration))
		if appErr, ok := err.(*errors.AppError); ok {
			return appErr.WithContext("stage", name)
		}
		return err
	}

	stageLogger.Info("Stage complete", logging.Duration("duration", duration))
	return nil
}

// buildClients assembles the HTTP stack: a token-injecting wrapper for the
// provider directory, a rate-limited wrapper for geocoding, and a plain
// wrapper for the census API.
func (r *Runner) buildClients() (*providers.Client, *geocode.Pool, *census.Client, error) {
	cfg := r.cfg

	tokenManager, err := auth.NewTokenManager(auth.Config{
		TokenURL: cfg.TokenURL,
		Username: cfg.Username,
		Password: cfg.Password,
	}, httpclient.NewHTTPClient(httpclient.WithTimeout(cfg.HTTPTimeout)))
	if err != nil {
		return nil, nil, nil, err
	}

	providerWrapper := httpclient.NewWrapper(httpclient.WithTimeout(cfg.HTTPTimeout)).
		WithTokenSource(tokenManager)
	providersClient, err := providers.NewClient(cfg.DataURL, providerWrapper)
	if err != nil {
		return nil, nil, nil, err
	}

	geocodeWrapper := httpclient.NewWrapper(httpclient.WithTimeout(cfg.HTTPTimeout))
	if cfg.GeocodeRateLimit > 0 {
		limiter, err := ratelimit.NewLimiter(ratelimit.Config{
			Enabled:           true,
			RequestsPerSecond: cfg.GeocodeRateLimit,
			BurstSize:         cfg.GeocodeWorkers,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		geocodeWrapper = geocodeWrapper.WithRateLimiter(limiter)
	}

	geocoder, err := geocode.NewClient(geocode.ClientConfig{
		APIKey:     cfg.GeocodeAPIKey,
		Endpoint:   r.geocodeEndpoint,
		Retries:    cfg.GeocodeRetries,
		RetryDelay: cfg.GeocodeDelay,
	}, geocodeWrapper)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := geocode.NewPool(geocoder, cfg.GeocodeWorkers)
	if err != nil {
		return nil, nil, nil, err
	}

	censusClient, err := census.NewClient(census.Config{
		BaseURL:   cfg.CensusURL,
		APIKey:    cfg.CensusAPIKey,
		StateFIPS: cfg.StateFIPS,
	}, httpclient.NewWrapper(httpclient.WithTimeout(cfg.HTTPTimeout)))
	if err != nil {
		return nil, nil, nil, err
	}

	return providersClient, pool, censusClient, nil
}

// joinCensus resolves FIPS codes to names for every census row. Codes the
// table does not know, including those of malformed rows, come back as the
// Unknown placeholders.
func joinCensus(rows []census.Row, table *fips.Table, stateFIPS string) []output.CensusRecord {
	records := make([]output.CensusRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, output.CensusRecord{
			County:        table.CountyName(stateFIPS, row.CountyFIPS),
			City:          table.PlaceName(stateFIPS, row.PlaceFIPS),
			Children0to3:  row.Children0to3,
			Children3to5:  row.Children3to5,
			Children6to11: row.Children6to11,
		})
	}
	return records
}

func countGeocoded(results []geocode.Result) int {
	count := 0
	for _, r := range results {
		if r.Location != nil {
			count++
		}
	}
	return count
}

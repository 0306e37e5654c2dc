package geocode

import (
	"context"
	"sync"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/logging"
)

// Result is the outcome of geocoding one address. Location is nil when the
// address could not be resolved; Err then carries the reason.
type Result struct {
	Address  string
	Location *Location
	Err      error
}

// Pool geocodes a batch of addresses with a fixed number of workers.
// Results are order-preserving: result i belongs to address i regardless of
// which worker handled it or when it finished.
type Pool struct {
	client  *Client
	workers int
	logger  logging.Logger
}

// NewPool creates a worker pool over the given client
func NewPool(client *Client, workers int) (*Pool, error) {
	if client == nil {
		return nil, errors.ConfigError("geocoding client is required")
	}
	if workers < 1 {
		return nil, errors.ConfigError("worker count must be at least 1")
	}

	return &Pool{
		client:  client,
		workers: workers,
		logger:  logging.GetGlobalLogger().WithFields(logging.String("component", "geocode_pool")),
	}, nil
}

// Run geocodes all addresses and returns one result per address, in input
// order. Individual failures land in their result slot; Run itself only
// fails when the context is cancelled.
func (p *Pool) Run(ctx context.Context, addresses []string) ([]Result, error) {
	results := make([]Result, len(addresses))
	if len(addresses) == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > len(addresses) {
		workers = len(addresses)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				address := addresses[i]
				location, err := p.client.Geocode(ctx, address)
				results[i] = Result{
					Address:  address,
					Location: location,
					Err:      err,
				}
			}
		}()
	}

feed:
	for i := range addresses {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if ctx.Err() != nil {
		return nil, errors.InternalError("geocoding cancelled", ctx.Err())
	}

	p.logger.Info("Geocoding batch complete",
		logging.Int("total", len(addresses)),
		logging.Int("resolved", countResolved(results)),
		logging.Int("workers", workers),
	)

	return results, nil
}

func countResolved(results []Result) int {
	resolved := 0
	for _, r := range results {
		if r.Location != nil {
			resolved++
		}
	}
	return resolved
}

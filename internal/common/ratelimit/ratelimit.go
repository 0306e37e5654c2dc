// Package ratelimit provides client-side rate limiting for outbound API
// calls, built on golang.org/x/time/rate. The geocoding pool shares one
// limiter so its workers collectively stay under the provider's quota.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	// Enabled toggles limiting; a disabled limiter always admits
	Enabled bool

	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64

	// BurstSize is the maximum burst above the sustained rate
	BurstSize int
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize < 1 {
		return fmt.Errorf("burst size must be at least 1, got %d", c.BurstSize)
	}
	return nil
}

// Limiter is the interface exposed to HTTP clients
type Limiter interface {
	// Wait blocks until a request may proceed or the context ends
	Wait(ctx context.Context) error

	// TryAcquire attempts to admit a request without blocking
	TryAcquire() bool
}

type limiter struct {
	config Config
	bucket *rate.Limiter
}

// NewLimiter creates a limiter from config
func NewLimiter(config Config) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &limiter{config: config}
	if config.Enabled {
		l.bucket = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize)
	}
	return l, nil
}

func (l *limiter) Wait(ctx context.Context) error {
	if !l.config.Enabled {
		return nil
	}
	return l.bucket.Wait(ctx)
}

func (l *limiter) TryAcquire() bool {
	if !l.config.Enabled {
		return true
	}
	return l.bucket.Allow()
}

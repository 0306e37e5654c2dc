package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 1*time.Second, config.InitialDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.Equal(t, 0.1, config.JitterFactor)
	assert.NotNil(t, config.RetryableErrors)
	assert.True(t, config.RetryableErrors(errors.New("any error")))
}

func TestRetryWithBackoff_Success(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxAttempts = 3
	config.InitialDelay = 10 * time.Millisecond

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxAttempts = 3
	config.InitialDelay = 10 * time.Millisecond

	attempts := 0
	testError := errors.New("persistent error")

	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		return testError
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.ErrorIs(t, err, testError)
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	config := DefaultRetryConfig()
	config.InitialDelay = 10 * time.Millisecond
	fatal := errors.New("fatal error")
	config.RetryableErrors = func(err error) bool {
		return !errors.Is(err, fatal)
	}

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		return fatal
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, fatal)
	assert.NotContains(t, err.Error(), "max retries exceeded")
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxAttempts = 10
	config.InitialDelay = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := RetryWithBackoff(ctx, config, func() error {
		attempts++
		return errors.New("keep failing")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, attempts)
}

func TestRetry_FixedDelay(t *testing.T) {
	attempts := 0
	start := time.Now()

	err := Retry(context.Background(), 3, 20*time.Millisecond, func() error {
		attempts++
		return errors.New("always fails")
	})

	elapsed := time.Since(start)
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	// Two fixed pauses between three attempts
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestRetry_SucceedsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, time.Second, func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

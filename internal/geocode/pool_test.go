package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider-lake/internal/common/httpclient"
	"provider-lake/internal/common/ratelimit"
)

// poolServer geocodes addresses of the form "addr-<n>" to lat=n, lng=-n
// and returns ZERO_RESULTS for anything else.
func poolServer(t *testing.T, concurrent *int32) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	active := 0
	peak := 0

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if concurrent != nil {
			mu.Lock()
			active++
			if active > peak {
				peak = active
				*concurrent = int32(peak)
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}

		address := r.URL.Query().Get("address")
		n, err := strconv.Atoi(strings.TrimPrefix(address, "addr-"))
		if err != nil {
			fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "OK",
			"results": []map[string]interface{}{
				{"geometry": map[string]interface{}{
					"location": map[string]float64{"lat": float64(n), "lng": float64(-n)},
				}},
			},
		})
	}))
}

func poolFor(t *testing.T, endpoint string, workers int) *Pool {
	t.Helper()
	client, err := NewClient(ClientConfig{
		APIKey:     "test-key",
		Endpoint:   endpoint,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}, httpclient.NewWrapper())
	require.NoError(t, err)

	pool, err := NewPool(client, workers)
	require.NoError(t, err)
	return pool
}

func TestPoolPreservesOrder(t *testing.T) {
	server := poolServer(t, nil)
	defer server.Close()

	pool := poolFor(t, server.URL, 4)

	addresses := make([]string, 25)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("addr-%d", i)
	}

	results, err := pool.Run(context.Background(), addresses)
	require.NoError(t, err)
	require.Len(t, results, 25)

	for i, r := range results {
		require.NotNil(t, r.Location, "result %d", i)
		assert.Equal(t, addresses[i], r.Address)
		assert.InDelta(t, float64(i), r.Location.Lat, 1e-9)
		assert.InDelta(t, float64(-i), r.Location.Lng, 1e-9)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var peak int32
	server := poolServer(t, &peak)
	defer server.Close()

	pool := poolFor(t, server.URL, 3)

	addresses := make([]string, 20)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("addr-%d", i)
	}

	_, err := pool.Run(context.Background(), addresses)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(3))
}

func TestPoolMissesDoNotFailTheBatch(t *testing.T) {
	server := poolServer(t, nil)
	defer server.Close()

	pool := poolFor(t, server.URL, 2)

	addresses := []string{"addr-0", "bogus", "addr-2"}
	results, err := pool.Run(context.Background(), addresses)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].Location)
	assert.Nil(t, results[1].Location)
	assert.Error(t, results[1].Err)
	assert.NotNil(t, results[2].Location)
}

func TestPoolEmptyInput(t *testing.T) {
	server := poolServer(t, nil)
	defer server.Close()

	pool := poolFor(t, server.URL, 2)

	results, err := pool.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPoolCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `{"status": "OK", "results": [{"geometry": {"location": {"lat": 1, "lng": 1}}}]}`)
	}))
	defer server.Close()

	pool := poolFor(t, server.URL, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	addresses := make([]string, 50)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("addr-%d", i)
	}

	_, err := pool.Run(ctx, addresses)
	require.Error(t, err)
}

func TestPoolWithRateLimiter(t *testing.T) {
	server := poolServer(t, nil)
	defer server.Close()

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:           true,
		RequestsPerSecond: 200,
		BurstSize:         5,
	})
	require.NoError(t, err)

	client, err := NewClient(ClientConfig{
		APIKey:     "test-key",
		Endpoint:   server.URL,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}, httpclient.NewWrapper().WithRateLimiter(limiter))
	require.NoError(t, err)

	pool, err := NewPool(client, 4)
	require.NoError(t, err)

	addresses := make([]string, 10)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("addr-%d", i)
	}

	results, err := pool.Run(context.Background(), addresses)
	require.NoError(t, err)
	for i, r := range results {
		assert.NotNil(t, r.Location, "result %d", i)
	}
}

func TestNewPoolValidation(t *testing.T) {
	server := poolServer(t, nil)
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "k", Endpoint: server.URL}, httpclient.NewWrapper())
	require.NoError(t, err)

	_, err = NewPool(nil, 2)
	assert.Error(t, err)

	_, err = NewPool(client, 0)
	assert.Error(t, err)
}

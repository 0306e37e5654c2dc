package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/httpclient"
)

func okResponse(lat, lng float64) string {
	return fmt.Sprintf(`{
		"status": "OK",
		"results": [{"geometry": {"location": {"lat": %v, "lng": %v}}}]
	}`, lat, lng)
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		APIKey:     "test-key",
		Endpoint:   endpoint,
		Retries:    3,
		RetryDelay: 5 * time.Millisecond,
	}, httpclient.NewWrapper())
	require.NoError(t, err)
	return client
}

func TestGeocodeSuccess(t *testing.T) {
	var gotAddress, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, okResponse(42.3314, -83.0458))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	loc, err := client.Geocode(context.Background(), "123 Main St, Detroit, Michigan 48201")
	require.NoError(t, err)

	assert.Equal(t, "123 Main St, Detroit, Michigan 48201", gotAddress)
	assert.Equal(t, "test-key", gotKey)
	assert.InDelta(t, 42.3314, loc.Lat, 1e-9)
	assert.InDelta(t, -83.0458, loc.Lng, 1e-9)
}

func TestGeocodeZeroResults(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	loc, err := client.Geocode(context.Background(), "1 Nowhere Ln")
	require.Error(t, err)
	assert.Nil(t, loc)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeocode))
	// The whole fixed attempt budget is spent
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGeocodeRecoversAfterTransientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, okResponse(44.76, -85.62))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	loc, err := client.Geocode(context.Background(), "100 Front St, Traverse City, Michigan 49684")
	require.NoError(t, err)
	assert.InDelta(t, 44.76, loc.Lat, 1e-9)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGeocodeMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html>`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeocode))
}

func TestGeocodeContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		APIKey:     "test-key",
		Endpoint:   server.URL,
		Retries:    10,
		RetryDelay: 50 * time.Millisecond,
	}, httpclient.NewWrapper())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = client.Geocode(ctx, "123 Main St")
	require.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "k"}, httpclient.NewWrapper())
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, client.config.Endpoint)
	assert.Equal(t, 3, client.config.Retries)
	assert.Equal(t, time.Second, client.config.RetryDelay)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{}, httpclient.NewWrapper())
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewClient(ClientConfig{APIKey: "k"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

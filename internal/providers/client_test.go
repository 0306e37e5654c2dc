package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/httpclient"
)

type staticToken string

func (s staticToken) GetValidToken(ctx context.Context) (string, error) {
	return string(s), nil
}

func TestFetch(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"value": [
				{"Name": "Sunny Days", "AddressLine1": "1 Elm St", "City": "Troy", "ZipCode": "48083"},
				{"Name": "Little Sprouts", "AddressLine1": "22 Oak Ave", "City": "Flint", "ZipCode": "48502"}
			]
		}`))
	}))
	defer server.Close()

	wrapper := httpclient.NewWrapper().WithTokenSource(staticToken("tok-1"))
	client, err := NewClient(server.URL, wrapper)
	require.NoError(t, err)

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	require.Len(t, records, 2)
	assert.Equal(t, "1 Elm St", records[0].AddressLine1())
	assert.Equal(t, "Flint", records[1].City())
}

func TestFetchMissingValueKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, httpclient.NewWrapper())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeParse))
	assert.Contains(t, err.Error(), "'value' key not found")
}

func TestFetchInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, httpclient.NewWrapper())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeParse))
}

func TestFetchMissingRequiredColumns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": [{"Name": "Sunny Days"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, httpclient.NewWrapper())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestFetchEmptyValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": []}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, httpclient.NewWrapper())
	require.NoError(t, err)

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", httpclient.NewWrapper())
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewClient("http://example.com", nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

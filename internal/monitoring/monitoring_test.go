package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_StatusEndpoint(t *testing.T) {
	server := httptest.NewServer(NewMetrics().Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestMetrics_MetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()
	server := httptest.NewServer(metrics.Handler())
	defer server.Close()

	fetch := func() string {
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Contains(t, fetch(), "incoming_requests_total 0")

	metrics.IncomingRequests.Inc()
	metrics.ProcessedItems.Add(2)

	body := fetch()
	assert.Contains(t, body, "incoming_requests_total 1")
	assert.Contains(t, body, "processed_items_total 2")
}

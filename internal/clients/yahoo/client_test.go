package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{
  "chart": {
    "result": [{
      "timestamp": [1704205800, 1704292200, 1704378600],
      "indicators": {"quote": [{"close": [185.64, null, 181.91]}]}
    }],
    "error": null
  }
}`

func TestClient_GetHistoricalPrices(t *testing.T) {
	var gotPath, gotInterval string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), WithBaseURL(server.URL), WithRateLimit(100))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	points, err := client.GetHistoricalPrices(context.Background(), "aapl", from, to)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1d", gotInterval)
	require.Len(t, points, 2, "null closes are skipped")
	assert.Equal(t, "2024-01-02", points[0].Date.Format("2006-01-02"))
	assert.Equal(t, "185.64", points[0].Close.String())
	assert.Equal(t, "2024-01-04", points[1].Date.Format("2006-01-02"))
}

func TestClient_ChartError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), WithBaseURL(server.URL))
	_, err := client.GetHistoricalPrices(context.Background(), "GONE", time.Now().AddDate(0, -1, 0), time.Now())
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestClient_HTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		noResult  bool
	}{
		{"not found", http.StatusNotFound, true},
		{"server error", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(zerolog.Nop(), WithBaseURL(server.URL))
			_, err := client.GetHistoricalPrices(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
			require.Error(t, err)
			assert.Equal(t, tt.noResult, errors.Is(err, ErrNoResult))
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	client := NewClient(zerolog.Nop(), WithBaseURL("http://127.0.0.1:1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetHistoricalPrices(ctx, "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	assert.Error(t, err)
}

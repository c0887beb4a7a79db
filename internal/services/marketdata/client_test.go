package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"
	drepo "FinSqueeze/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLatestNBarsNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/bars", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("tf"))
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"symbol":"AAPL","bars":[
			{"time":"2024-01-03T00:00:00Z","open":10,"high":11,"low":9,"close":10.5,"volume":100},
			{"time":"2024-01-02T00:00:00Z","open":10,"high":11,"low":9,"close":10.2,"volume":100},
			{"time":"2024-01-02T00:00:00Z","open":10,"high":11,"low":9,"close":10.3,"volume":120},
			{"time":"2024-01-04T00:00:00Z","open":10,"high":8,"low":9,"close":10,"volume":100}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", time.Second)
	bars, err := c.GetLatestNBars(context.Background(), "aapl", 5, drepo.TF1d)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.3, bars[0].Close)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestUpstreamFailureIsDataUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.GetLatestNBars(context.Background(), "MSFT", 10, drepo.TF1d)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))

	_, err = c.LastQuote(context.Background(), "MSFT")
	var due *models.DataUnavailableError
	require.True(t, errors.As(err, &due))
	assert.Equal(t, "MSFT", due.Symbol)
}
